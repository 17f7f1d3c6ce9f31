package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gigbridge/gigbridge-backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	cases := map[string]struct {
		project, name, want string
	}{
		"short id":      {"proj", "gb-otp-delivery", "projects/proj/topics/gb-otp-delivery"},
		"full resource": {"proj", " projects/other/topics/t ", "projects/other/topics/t"},
		"no project":    {"", "t", ""},
		"blank name":    {"proj", "  ", ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, topicResourceName(tc.project, tc.name))
		})
	}
}

func TestConfiguredTopicsSkipsBlanks(t *testing.T) {
	names := configuredTopics(config.PubSubConfig{NotificationTopic: "n", OTPDeliveryTopic: " ", DomainTopic: "d"})
	assert.Equal(t, []string{"n", "d"}, names)
	assert.Empty(t, configuredTopics(config.PubSubConfig{}))
}

func TestCredentialOptions(t *testing.T) {
	assert.Empty(t, credentialOptions(config.GCPConfig{}))
	assert.Len(t, credentialOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`}), 1)
	assert.Len(t, credentialOptions(config.GCPConfig{ApplicationCredentials: "/etc/gcp.json"}), 1)
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{ProjectID: " "}, config.PubSubConfig{}, nil)
	assert.ErrorIs(t, err, errProjectIDRequired)
}

func TestNilClientIsInert(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("x"))
	assert.Nil(t, c.DomainPublisher())
	assert.Nil(t, c.OTPDeliveryPublisher())
	assert.NoError(t, c.Close())
	assert.ErrorIs(t, c.Ping(context.Background()), errNotInitialized)
}
