package dispatcher

import (
	"fmt"

	"dmxout/internal/config"
	"dmxout/internal/output"
)

const (
	settingsGroup = "output"

	keyType          = "out_type"
	keyAddress       = "ip_address"
	keyStartChannel  = "start_channel"
	keyStartUniverse = "start_universe"
	keyUniverseSize  = "universe_size"

	defaultType          = "E131"
	defaultAddress       = "192.168.1.50"
	defaultStartChannel  = 1
	defaultStartUniverse = 1
	defaultUniverseSize  = 512
)

// LoadBackend creates an output of type kind and replaces the current one,
// closing it. An unknown kind is logged and leaves the current output in place.
func (d *Dispatcher) LoadBackend(kind, address string, startUniverse, startChannel, universeSize uint32) error {
	k, err := output.ParseKind(kind)
	if err != nil {
		d.logEntry().Warnf("Unsupported output type: %s", kind)
		return fmt.Errorf("%w: %q", output.ErrUnsupportedKind, kind)
	}

	cfg, err := output.NewConfig(k, address, startUniverse, startChannel, universeSize)
	if err != nil {
		return err
	}
	out, err := d.factory(cfg)
	if err != nil {
		return fmt.Errorf("failed to create %s output: %w", k, err)
	}

	d.outMu.Lock()
	prev := d.out
	d.out = out
	d.failing = false
	d.outMu.Unlock()

	if prev != nil {
		if err := prev.Close(); err != nil {
			d.logEntry().Warnf("failed to close replaced output %s: %v", prev.Name(), err)
		}
	}
	d.logEntry().Infof("output %s loaded: address=%s start_channel=%d channels=%d", k, address, startChannel, universeSize)
	return nil
}

// Backend returns the active output or nil.
func (d *Dispatcher) Backend() output.Output {
	d.outMu.Lock()
	defer d.outMu.Unlock()
	return d.out
}

// OpenBackend opens the active output. Without an output it does nothing.
func (d *Dispatcher) OpenBackend() error {
	d.outMu.Lock()
	defer d.outMu.Unlock()
	if d.out == nil {
		return nil
	}
	if err := d.out.Open(); err != nil {
		return fmt.Errorf("failed to open output %s: %w", d.out.Name(), err)
	}
	return nil
}

// CloseBackend closes the active output, if any.
func (d *Dispatcher) CloseBackend() error {
	d.outMu.Lock()
	defer d.outMu.Unlock()
	if d.out == nil {
		return nil
	}
	if err := d.out.Close(); err != nil {
		return fmt.Errorf("failed to close output %s: %w", d.out.Name(), err)
	}
	return nil
}

// PersistSettings stores the active output in the "output" group.
func (d *Dispatcher) PersistSettings(store config.Store) {
	out := d.Backend()
	if out == nil {
		return
	}
	cfg := out.Config()

	store.SetString(settingsGroup, keyType, cfg.Kind.String())
	store.SetString(settingsGroup, keyAddress, cfg.IP)
	store.SetUint(settingsGroup, keyStartChannel, cfg.StartChannel)
	store.SetUint(settingsGroup, keyUniverseSize, cfg.Channels)
	if cfg.Kind.HasUniverse() {
		store.SetUint(settingsGroup, keyStartUniverse, cfg.Universe)
	}
}

// LoadSettings reads the "output" group and loads the described output.
func (d *Dispatcher) LoadSettings(store config.Store) error {
	return d.LoadBackend(
		store.String(settingsGroup, keyType, defaultType),
		store.String(settingsGroup, keyAddress, defaultAddress),
		store.Uint(settingsGroup, keyStartUniverse, defaultStartUniverse),
		store.Uint(settingsGroup, keyStartChannel, defaultStartChannel),
		store.Uint(settingsGroup, keyUniverseSize, defaultUniverseSize),
	)
}
