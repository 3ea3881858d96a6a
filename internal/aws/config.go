package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

// DefaultRegion is used when Settings leaves the region empty.
const DefaultRegion = "us-east-1"

// Settings selects the region and an optional endpoint shared by every
// client, such as localstack during development.
type Settings struct {
	Region   string
	Endpoint string
}

// LoadAWSConfig resolves the shared AWS config. Credentials come from the
// default chain.
func LoadAWSConfig(ctx context.Context, s Settings) (sdkaws.Config, error) {
	region := s.Region
	if region == "" {
		region = DefaultRegion
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if s.Endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(s.Endpoint))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return cfg, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}
