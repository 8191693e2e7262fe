package connection

import (
	"context"
	"time"

	"firmup/internal/domain/device"
	"firmup/internal/shared/config"
	"firmup/internal/shared/logger"
)

// Dialer abstracts session construction so the provider can be tested
// without a network.
type Dialer func(record *device.DeviceConnection) (device.Connection, error)

// Provider walks a device's connection records in order and returns the
// first session that connects, persisting the working/failure outcome on
// every attempted record before returning.
type Provider struct {
	connections device.ConnectionRepository
	dial        Dialer
	log         logger.Interface
}

// NewProvider builds a provider dialing SSH sessions with the configured
// credential material and timeouts.
func NewProvider(connections device.ConnectionRepository, cfg config.ConnectionConfig, log logger.Interface) *Provider {
	store := make(map[string]CredentialSource, len(cfg.Credentials))
	for label, cred := range cfg.Credentials {
		store[label] = CredentialSource{Password: cred.Password, PrivateKeyPath: cred.PrivateKeyPath}
	}
	dial := func(record *device.DeviceConnection) (device.Connection, error) {
		creds, err := LoadCredentials(store, record.Credentials())
		if err != nil {
			return nil, err
		}
		var opts []SSHOption
		if cfg.DialTimeout > 0 {
			opts = append(opts, WithDialTimeout(cfg.DialTimeout))
		}
		if cfg.CommandTimeout > 0 {
			opts = append(opts, WithCommandTimeout(cfg.CommandTimeout))
		}
		return NewSSHConnection(record.Addresses(), record.User(), record.Port(), creds, opts...)
	}
	return &Provider{connections: connections, dial: dial, log: log}
}

// NewProviderWithDialer builds a provider over a custom dialer.
func NewProviderWithDialer(connections device.ConnectionRepository, dial Dialer, log logger.Interface) *Provider {
	return &Provider{connections: connections, dial: dial, log: log}
}

// GetWorkingConnection returns a connected session for the device, or a
// NoWorkingConnectionError carrying the last attempted record (nil when
// the device has no connection records at all). Each attempt outcome is
// persisted before moving on so dashboards see committed state.
func (p *Provider) GetWorkingConnection(ctx context.Context, dev *device.Device) (device.Connection, *device.DeviceConnection, error) {
	records, err := p.connections.ListByDeviceID(ctx, dev.ID())
	if err != nil {
		return nil, nil, err
	}
	var last *device.DeviceConnection
	for _, record := range records {
		last = record
		conn, err := p.attempt(ctx, dev, record)
		if err != nil {
			continue
		}
		return conn, record, nil
	}
	return nil, nil, &device.NoWorkingConnectionError{Last: last}
}

func (p *Provider) attempt(ctx context.Context, dev *device.Device, record *device.DeviceConnection) (device.Connection, error) {
	now := time.Now().UTC()
	conn, err := p.dial(record)
	if err == nil {
		err = conn.Connect(ctx)
	}
	if err != nil {
		record.MarkNotWorking(err.Error(), now)
		if updateErr := p.connections.Update(ctx, record); updateErr != nil {
			p.log.Errorw("failed to persist connection failure",
				"device", dev.SID(), "connection_id", record.ID(), "error", updateErr)
		}
		p.log.Warnw("connection attempt failed",
			"device", dev.SID(), "credentials", record.Credentials(), "error", err)
		return nil, err
	}
	record.MarkWorking(now)
	if updateErr := p.connections.Update(ctx, record); updateErr != nil {
		p.log.Errorw("failed to persist connection success",
			"device", dev.SID(), "connection_id", record.ID(), "error", updateErr)
	}
	return conn, nil
}
