package store

import "testing"

func TestParseOriginalKey(t *testing.T) {
	tests := []struct {
		name        string
		key         string
		wantUserID  string
		wantAlbumID string
		wantErr     bool
	}{
		{
			name:        "flat album key",
			key:         "album/user123/photo.jpg",
			wantUserID:  "user123",
			wantAlbumID: "album/user123",
		},
		{
			name:        "nested album key",
			key:         "album/user123/trips/jeju/photo.jpg",
			wantUserID:  "user123",
			wantAlbumID: "album/user123/trips/jeju",
		},
		{"wrong prefix", "media/user123/photo.jpg", "", "", true},
		{"empty user segment", "album//photo.jpg", "", "", true},
		{"too few segments", "album/user123", "", "", true},
		{"empty key", "", "", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			userID, albumID, err := ParseOriginalKey(tc.key)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.key)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if userID != tc.wantUserID || albumID != tc.wantAlbumID {
				t.Errorf("got (%q, %q), want (%q, %q)", userID, albumID, tc.wantUserID, tc.wantAlbumID)
			}
		})
	}
}

func TestAlbumPrefix(t *testing.T) {
	if got := AlbumPrefix("u1"); got != "album/u1/" {
		t.Errorf("AlbumPrefix = %q", got)
	}
}

func TestAlbumID(t *testing.T) {
	if got := AlbumID("album/u1/trips/photo.jpg"); got != "album/u1/trips" {
		t.Errorf("AlbumID = %q", got)
	}
}
