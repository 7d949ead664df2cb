package sensor

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/okian/airsense/internal/domain/model"
)

// I2COption configures an I2C source.
type I2COption func(*I2C)

// WithBus selects the periph bus name. Empty opens the first bus found.
func WithBus(name string) I2COption {
	return func(s *I2C) { s.busName = name }
}

// WithAddress sets the primary device address.
func WithAddress(addr uint16) I2COption {
	return func(s *I2C) {
		if addr != 0 {
			s.addr = addr
		}
	}
}

// WithHeater sets the gas heater step.
func WithHeater(h HeaterProfile) I2COption {
	return func(s *I2C) {
		if h.TempC > 0 && h.Duration > 0 {
			s.heater = h
		}
	}
}

// I2C is a BME68x source on a periph.io I2C bus.
type I2C struct {
	mu sync.Mutex

	busName string
	addr    uint16
	heater  HeaterProfile

	bus    i2c.BusCloser
	dev    *BME68x
	active uint16
}

// NewI2C initialises the host drivers, opens the bus and probes the device at
// the primary address, then at the alternate one.
func NewI2C(ctx context.Context, opts ...I2COption) (*I2C, error) {
	s := &I2C{addr: AddrPrimary, heater: DefaultHeater}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "periph host init")
	}
	if err := s.Reinit(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Address returns the address the device answered on.
func (s *I2C) Address() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Reinit implements Reinitializer by reopening the bus and re-running device setup.
func (s *I2C) Reinit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bus != nil {
		_ = s.bus.Close()
		s.bus, s.dev = nil, nil
	}
	bus, err := i2creg.Open(s.busName)
	if err != nil {
		return errors.Wrapf(err, "i2c open %q", s.busName)
	}

	dev, addr, err := probe(s.candidates(), s.heater, func(a uint16) regIO {
		return periphRegs{d: &i2c.Dev{Bus: bus, Addr: a}}
	})
	if err != nil {
		_ = bus.Close()
		return err
	}
	s.bus, s.dev, s.active = bus, dev, addr
	return nil
}

func (s *I2C) candidates() []uint16 {
	switch s.addr {
	case AddrPrimary:
		return []uint16{AddrPrimary, AddrSecondary}
	case AddrSecondary:
		return []uint16{AddrSecondary, AddrPrimary}
	}
	return []uint16{s.addr}
}

// probe returns the first address that yields a working device.
func probe(addrs []uint16, heater HeaterProfile, open func(uint16) regIO) (*BME68x, uint16, error) {
	var errs []error
	for _, a := range addrs {
		dev, err := newBME68x(open(a), heater)
		if err == nil {
			return dev, a, nil
		}
		errs = append(errs, errors.Wrapf(err, "0x%02X", a))
	}
	if len(errs) == 0 {
		return nil, 0, errors.Wrap(ErrChipID, "bme68x not found: no addresses")
	}
	return nil, 0, errors.Wrap(stderrors.Join(errs...), "bme68x not found")
}

// Sample implements Source.
func (s *I2C) Sample(ctx context.Context) (model.RawReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return model.RawReading{}, errors.Wrap(ErrReadFailed, "bme68x: not initialised")
	}
	return s.dev.Sample(ctx)
}

// Close implements Source.
func (s *I2C) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bus == nil {
		return nil
	}
	err := s.bus.Close()
	s.bus, s.dev = nil, nil
	return err
}

type periphRegs struct {
	d *i2c.Dev
}

func (p periphRegs) ReadRegU8(reg byte) (byte, error) {
	var b [1]byte
	if err := p.d.Tx([]byte{reg}, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (p periphRegs) ReadReg(reg byte, dst []byte) error {
	return p.d.Tx([]byte{reg}, dst)
}

func (p periphRegs) WriteReg(reg, value byte) error {
	return p.d.Tx([]byte{reg, value}, nil)
}
