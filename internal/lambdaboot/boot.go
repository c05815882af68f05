// Package lambdaboot provides shared Lambda cold-start bootstrap logic.
//
// Every Lambda in the pipeline needs some subset of: AWS config, the album
// store, S3, SQS, and the Gemini API key from SSM. This package extracts the
// common init patterns so each Lambda's init() is a short composition of
// helpers.
package lambdaboot

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/albumlab/album-organizer/internal/logging"
	"github.com/albumlab/album-organizer/internal/store"
)

// AWSClients holds the core AWS SDK clients used across Lambdas.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// InitAWS loads the default AWS config and returns it along with common clients.
func InitAWS() AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// InitAlbumStore creates the DynamoDB-backed album store from the metadata
// and stats table name environment variables. Fatals if either is empty.
func InitAlbumStore(cfg aws.Config, metadataTableEnv, statsTableEnv string) *store.DynamoStore {
	metadataTable := os.Getenv(metadataTableEnv)
	if metadataTable == "" {
		log.Fatal().Str("envVar", metadataTableEnv).Msg("Metadata table environment variable is required")
	}
	statsTable := os.Getenv(statsTableEnv)
	if statsTable == "" {
		log.Fatal().Str("envVar", statsTableEnv).Msg("Stats table environment variable is required")
	}
	return store.NewDynamoStore(dynamodb.NewFromConfig(cfg), metadataTable, statsTable)
}

// InitStatsStore creates the album store when only the stats table is
// needed; the metadata table name is left empty and must not be queried.
func InitStatsStore(cfg aws.Config, statsTableEnv string) *store.DynamoStore {
	statsTable := os.Getenv(statsTableEnv)
	if statsTable == "" {
		log.Fatal().Str("envVar", statsTableEnv).Msg("Stats table environment variable is required")
	}
	return store.NewDynamoStore(dynamodb.NewFromConfig(cfg), "", statsTable)
}

// InitS3 creates an S3 client.
func InitS3(cfg aws.Config) *s3.Client {
	return s3.NewFromConfig(cfg)
}

// InitSFN creates a Step Functions client and reads the state machine ARN
// from the given environment variable. An empty ARN is allowed; callers
// treat it as "only report the decision, something else starts the workflow".
func InitSFN(cfg aws.Config, arnEnvVar string) (*sfn.Client, string) {
	arn := os.Getenv(arnEnvVar)
	if arn == "" {
		log.Warn().Str("envVar", arnEnvVar).Msg("State machine ARN not set; workflow start disabled")
	}
	return sfn.NewFromConfig(cfg), arn
}

// InitSQS creates an SQS client and reads the queue URL from the given
// environment variable. An empty queue URL is allowed; callers treat it as
// "deletion handled elsewhere" and only return the delete list.
func InitSQS(cfg aws.Config, queueEnvVar string) (*sqs.Client, string) {
	queueURL := os.Getenv(queueEnvVar)
	if queueURL == "" {
		log.Warn().Str("envVar", queueEnvVar).Msg("Queue URL not set; message deletion disabled")
	}
	return sqs.NewFromConfig(cfg), queueURL
}

// LoadGeminiKey returns the Gemini API key, preferring the GEMINI_API_KEY
// environment variable and falling back to SSM Parameter Store. Fatals on
// error.
func LoadGeminiKey(ssmClient *ssm.Client) string {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key
	}
	paramName := logging.EnvOrDefault("SSM_API_KEY_PARAM", "/album-organizer/prod/gemini-api-key")

	ssmStart := time.Now()
	result, err := ssmClient.GetParameter(context.Background(), &ssm.GetParameterInput{
		Name:           &paramName,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		log.Fatal().Err(err).Str("param", paramName).Msg("Failed to read API key from SSM")
	}
	log.Debug().Str("param", paramName).Dur("elapsed", time.Since(ssmStart)).Msg("Gemini API key loaded from SSM")
	return *result.Parameter.Value
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
