package rpc

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNATSSubjects(t *testing.T) {
	tests := []struct {
		prefix    string
		wantReq   string
		wantEvent string
	}{
		{"", "clan.api.list_machines", "clan.api.events.list_machines"},
		{"  lab.api. ", "lab.api.list_machines", "lab.api.events.list_machines"},
		{".edge", "edge.list_machines", "edge.events.list_machines"},
	}
	for _, tt := range tests {
		tr := &NATSTransport{prefix: subjectPrefix(tt.prefix)}
		assert.Equal(t, tt.wantReq, tr.Subject(OpListMachines), "prefix %q", tt.prefix)
		assert.Equal(t, tt.wantEvent, tr.EventSubject(OpListMachines), "prefix %q", tt.prefix)
	}
}

func TestNATSRequestError(t *testing.T) {
	err := requestError(OpSetMachine, fmt.Errorf("request: %w", nats.ErrNoResponders))
	require.ErrorIs(t, err, ErrUnknownOperation)
	assert.Contains(t, err.Error(), string(OpSetMachine))

	other := errors.New("timeout")
	assert.Equal(t, other, requestError(OpSetMachine, other))
}

func TestNATSTransport_Unconnected(t *testing.T) {
	tr := &NATSTransport{prefix: defaultSubjectPrefix}

	_, err := tr.Request(context.Background(), OpListMachines, nil)
	require.ErrorIs(t, err, ErrClosed)
	_, err = tr.Subscribe(OpRunMachineInstall, func([]byte) {})
	require.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, tr.Close())
}

func TestDialNATS_Unreachable(t *testing.T) {
	_, err := DialNATS(NATSOptions{URL: "nats://127.0.0.1:1", ConnectWait: 200 * time.Millisecond})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect nats nats://127.0.0.1:1")
}
