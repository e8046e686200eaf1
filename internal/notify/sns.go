package notify

import (
	"context"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// snsNotifier publishes notifications to an SNS topic. A subscription
// filter on the "email" message attribute routes each message to its
// recipient.
type snsNotifier struct {
	client   *sns.Client
	topicARN string
}

// NewSNSNotifier creates a Notifier backed by an SNS topic.
func NewSNSNotifier(region, topicARN string) (Notifier, error) {
	awsSDKConfig, err := awsCfg.LoadDefaultConfig(context.TODO(), awsCfg.WithRegion(region))
	if err != nil {
		log.Printf("ERROR: Failed to load AWS SDK config for SNS: %v", err)
		return nil, err
	}

	return &snsNotifier{
		client:   sns.NewFromConfig(awsSDKConfig),
		topicARN: topicARN,
	}, nil
}

func (n *snsNotifier) Notify(ctx context.Context, recipientEmail, subject, body string) error {
	_, err := n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(body),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"email": {
				DataType:    aws.String("String"),
				StringValue: aws.String(recipientEmail),
			},
		},
	})
	if err != nil {
		log.Printf("ERROR: Failed to publish notification to %s: %v", recipientEmail, err)
		return err
	}
	return nil
}
