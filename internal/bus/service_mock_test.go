package bus

import (
	"context"
	"errors"

	"github.com/mblarsen/wsl-notifyd/internal/content"
)

type mockService struct {
	req      content.Request
	replaces uint32
	closed   []uint32
	ctx      context.Context
	err      error
	panicMsg string
}

func (m *mockService) GetCapabilities() []string {
	return []string{"body", "actions"}
}

func (m *mockService) Notify(ctx context.Context, replacesID uint32, req content.Request) (uint32, error) {
	m.ctx = ctx
	m.replaces = replacesID
	m.req = req
	if m.panicMsg != "" {
		panic(m.panicMsg)
	}
	if m.err != nil {
		return 0, m.err
	}
	if replacesID != 0 {
		return replacesID, nil
	}
	return 7, nil
}

func (m *mockService) CloseNotification(ctx context.Context, id uint32) error {
	m.ctx = ctx
	m.closed = append(m.closed, id)
	return m.err
}

func (m *mockService) GetServerInformation() (string, string, string, string) {
	return "wsl-notifyd", "WSL", "dev", "1.2"
}

var errRendererDown = errors.New("renderer down")
