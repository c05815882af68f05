package sorter

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/albumlab/album-organizer/internal/store"
)

// CatchAllCategory is the general category the model is told to use for
// images that fit no specific theme. Validation relies on it: no input image
// may be silently dropped, so outliers must land here.
const CatchAllCategory = "일상의 순간들"

// basePrompt defines the grouping task and the output contract. The prompt
// is English to keep token usage down; the category names and descriptions
// it produces stay Korean.
const basePrompt = `You are an expert AI specializing in intelligently organizing photo albums. Your task is to group images into meaningful categories based on their provided metadata (key, summary, tags).

Follow these rules:
1.  **Dynamic Categories**: Create a suitable number of categories based on the images.
2.  **Categorization Principles**: Group images by specific events (birthdays, holidays), travel/location, or recurring subjects (pets, food).
3.  **Handling Outliers**: If an image doesn't fit any specific theme, place it in a general category named '일상의 순간들' (Daily Moments).
4.  **Complete Coverage**: Every image key you are given MUST appear in exactly one category. Never omit an image.
5.  **JSON Output Only**: Strictly adhere to the JSON format. Do not add explanations.
6.  **Korean Language Output**: All text values (categoryName, description) MUST be in Korean.

JSON Output Structure:
{
  "categories": [
    {
      "categoryName": "카테고리 이름",
      "description": "A warm, summary-style sentence for the category, like an album title.",
      "imageKeys": ["image_key_1.jpg", "image_key_2.png"]
    }
  ]
}
---
`

// incrementalRules constrain how new images merge into an existing structure:
// prefer existing categories, only open a new one for a clearly shared theme,
// and always return the complete merged structure rather than a diff.
const incrementalRules = `
**Special Instructions for this Update**:
a. **Prioritize Existing Categories**: First, try to place new images into an existing category if the theme strongly matches.
b. **Threshold for New Categories**: Only create a new category if a group of new images (at least 2-3) shares a strong, distinct theme. Do not create a new category for a single outlier image.
c. **Final Output**: The final output must be a single, complete JSON object that includes all images (both old and new) organized into the final, updated category structure.
---
`

// BuildPrompt assembles the oracle prompt for a pass. meta holds the
// resolved per-image metadata for the work set's keys.
func BuildPrompt(ws *WorkSet, meta map[string]*store.ImageRecord) string {
	var b strings.Builder
	b.WriteString(basePrompt)

	if ws.Initial || ws.Prior == nil {
		b.WriteString("\nAnalyze the following list of images and group them into optimal new categories.\n")
		b.WriteString("\n[Image List to Analyze]\n")
		b.WriteString(imageInfoText(meta))
		return b.String()
	}

	// The prior structure is supplied verbatim so unchanged categories carry
	// through byte-for-byte.
	existing, err := json.MarshalIndent(ws.Prior, "", "  ")
	if err != nil {
		existing = []byte("{}")
	}

	b.WriteString(incrementalRules)
	b.WriteString("\nHere is the existing category structure. Please review it before proceeding.\n")
	b.WriteString("[Existing Categories]\n")
	b.Write(existing)
	b.WriteString("\n\nNow, analyze the new images below and integrate them into the structure according to the rules.\n")
	b.WriteString("\n[New Images to Add]\n")
	b.WriteString(imageInfoText(meta))
	return b.String()
}

// imageInfoText renders one metadata block per image, in sorted key order so
// identical work sets produce identical prompts.
func imageInfoText(meta map[string]*store.ImageRecord) string {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		rec := meta[k]
		summary := rec.Summary
		if summary == "" {
			summary = "No summary"
		}
		fmt.Fprintf(&b, "- Image Key: %s\n  Summary: %s\n  Tags: [%s]\n", k, summary, strings.Join(rec.Tags, ", "))
	}
	return b.String()
}
