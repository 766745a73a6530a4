package main

import (
	config "github.com/NordCoder/campauth/internal/config/auth-server"
	kafkarepo "github.com/NordCoder/campauth/internal/repository/kafka"
	"github.com/NordCoder/campauth/internal/services/cleanup"
	"github.com/thejerf/suture/v4"
	"go.uber.org/zap"
)

// buildSupervisor owns the background work of the process: the refresh
// token cleanup and the auth event queue.
func buildSupervisor(cfg *config.Config, logger *zap.Logger, st *authStack, events *kafkarepo.AuthEvents) *suture.Supervisor {
	sup := suture.New("campauth", suture.Spec{
		EventHook: func(e suture.Event) {
			logger.Warn("supervisor event", zap.String("event", e.String()))
		},
	})

	if cfg.Cleanup.Enable {
		sup.Add(cleanup.New(logger.Named("cleanup"), st.store, cfg.Cleanup.Interval, nil))
	} else {
		logger.Info("refresh token cleanup disabled")
	}
	if events != nil {
		sup.Add(events)
	}
	return sup
}
