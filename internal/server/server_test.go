package server

import (
	"context"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunTLSFailsWithoutCertificates(t *testing.T) {
	s := &Server{router: mux.NewRouter(), log: zap.NewNop()}

	err := s.RunTLS("127.0.0.1:0", "missing.crt", "missing.key")

	require.Error(t, err)
	require.NotNil(t, s.httpServer)
	assert.NotNil(t, s.httpServer.TLSConfig)
}

func TestShutdownWithoutListener(t *testing.T) {
	s := &Server{router: mux.NewRouter(), log: zap.NewNop()}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.NoError(t, s.Shutdown(ctx))
}
