package app

import (
	"context"
	"fmt"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/attendo/internal/attendance"
	"github.com/shrimpsizemoose/attendo/internal/auth"
	"github.com/shrimpsizemoose/attendo/internal/rooms"
	"github.com/shrimpsizemoose/attendo/internal/sessions"
	"github.com/shrimpsizemoose/attendo/internal/ues"
)

type Service struct {
	Config  *Config
	Gateway *Gateway
	Auth    *auth.State

	Sessions   *sessions.Service
	UEs        *ues.Service
	Rooms      *rooms.Service
	Attendance *attendance.Service

	broker auth.Broker
}

func NewService(ctx context.Context, configPath string) (*Service, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewServiceFromConfig(ctx, config)
}

func NewServiceFromConfig(ctx context.Context, config *Config) (*Service, error) {
	gw, err := NewGateway(config)
	if err != nil {
		return nil, err
	}

	s := &Service{Config: config, Gateway: gw}

	if err := s.initAuth(ctx); err != nil {
		gw.Close()
		return nil, fmt.Errorf("failed to init auth: %w", err)
	}

	s.Sessions = sessions.NewService(gw.Tables)
	s.UEs = ues.NewService(gw.Tables, s.Sessions)
	s.Rooms = rooms.NewService(gw.Tables)
	s.Attendance = attendance.NewService(gw.Tables)

	return s, nil
}

func (s *Service) initAuth(ctx context.Context) error {
	if !s.Config.Server.EnableAuth {
		logger.Info.Printf("Authentication disabled, acting as %s", auth.LocalUser.Email)
		s.Auth = auth.NewLocalState()
		return nil
	}

	if s.Config.Auth.RedisURL != "" {
		broker, err := auth.NewRedisBroker(s.Config.Auth.RedisURL, s.Config.Auth.Channel, s.Config.Auth.SessionKey)
		if err != nil {
			return err
		}
		s.broker = broker
	} else {
		s.broker = auth.NewMemoryBroker()
	}

	s.Auth = auth.NewState(s.Gateway.Client, s.broker, s.Config.Auth.Provider)
	s.Gateway.Client.SetTokenSource(s.Auth)

	if err := s.Auth.Start(ctx); err != nil {
		s.broker.Close()
		return err
	}
	return nil
}

func (s *Service) Close() error {
	var errs []error

	if s.Auth != nil {
		s.Auth.Close()
	}
	if s.broker != nil {
		if err := s.broker.Close(); err != nil {
			errs = append(errs, fmt.Errorf("auth broker: %w", err))
		}
	}
	if err := s.Gateway.Close(); err != nil {
		errs = append(errs, fmt.Errorf("gateway: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors while closing: %v", errs)
	}
	return nil
}
