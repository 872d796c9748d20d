package grpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:50051", cfg.Address)
	assert.Equal(t, 4*1024*1024, cfg.MaxRecvMsgSize)
	assert.Equal(t, 4*1024*1024, cfg.MaxSendMsgSize)
}

func TestServerConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ServerConfig)
		wantErr string
	}{
		{"valid", func(*ServerConfig) {}, ""},
		{"all interfaces", func(c *ServerConfig) { c.Address = ":50051" }, ""},
		{"empty address", func(c *ServerConfig) { c.Address = "" }, "address is required"},
		{"no port", func(c *ServerConfig) { c.Address = "localhost" }, "invalid address format"},
		{"zero recv size", func(c *ServerConfig) { c.MaxRecvMsgSize = 0 }, "max_recv_msg_size"},
		{"negative send size", func(c *ServerConfig) { c.MaxSendMsgSize = -1 }, "max_send_msg_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultServerConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
