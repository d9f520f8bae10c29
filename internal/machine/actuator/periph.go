package actuator

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// PeriphConfig names the GPIO lines driving the actuator.
type PeriphConfig struct {
	DirPin  string // direction line, e.g. "GPIO20"
	PWMPin  string // motor speed line, e.g. "GPIO21"
	LockPin string // solenoid lock line, e.g. "GPIO16"
	PWMFreq int    // pulse-width frequency in Hz
}

// PeriphOutputs drives real GPIO lines through periph.io.
type PeriphOutputs struct {
	cfg  PeriphConfig
	freq physic.Frequency
	dir  gpio.PinIO
	pwm  gpio.PinIO
	lock gpio.PinIO
}

// NewPeriphOutputs creates real output lines. Pins are not claimed until Init.
func NewPeriphOutputs(cfg PeriphConfig) *PeriphOutputs {
	return &PeriphOutputs{
		cfg:  cfg,
		freq: physic.Frequency(cfg.PWMFreq) * physic.Hertz,
	}
}

// GPIOAvailable reports whether this host exposes usable GPIO lines.
// Used at startup to pick between real and simulated outputs.
func GPIOAvailable(dirPin string) bool {
	if _, err := host.Init(); err != nil {
		return false
	}
	return gpioreg.ByName(dirPin) != nil
}

// Init claims the three lines, drives them low, and starts the
// pulse-width generator at zero duty.
func (p *PeriphOutputs) Init() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("initialising gpio host: %w", err)
	}

	for _, pin := range []struct {
		name string
		dst  *gpio.PinIO
	}{
		{p.cfg.DirPin, &p.dir},
		{p.cfg.PWMPin, &p.pwm},
		{p.cfg.LockPin, &p.lock},
	} {
		found := gpioreg.ByName(pin.name)
		if found == nil {
			return fmt.Errorf("gpio pin %q not found", pin.name)
		}
		*pin.dst = found
	}

	if err := p.dir.Out(gpio.Low); err != nil {
		return fmt.Errorf("clearing direction line: %w", err)
	}
	if err := p.lock.Out(gpio.Low); err != nil {
		return fmt.Errorf("clearing lock line: %w", err)
	}
	if err := p.pwm.PWM(0, p.freq); err != nil {
		return fmt.Errorf("starting pulse-width generator: %w", err)
	}
	return nil
}

func (p *PeriphOutputs) SetDirection(d Direction) error {
	if p.dir == nil {
		return ErrOutputsNotInitialized
	}
	level := gpio.Low
	if d == DirectionCW {
		level = gpio.High
	}
	if err := p.dir.Out(level); err != nil {
		return fmt.Errorf("setting direction line: %w", err)
	}
	return nil
}

func (p *PeriphOutputs) SetDuty(percent float64) error {
	if p.pwm == nil {
		return ErrOutputsNotInitialized
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	duty := gpio.Duty(percent / 100 * float64(gpio.DutyMax))
	if err := p.pwm.PWM(duty, p.freq); err != nil {
		return fmt.Errorf("setting duty cycle: %w", err)
	}
	return nil
}

func (p *PeriphOutputs) SetLock(energized bool) error {
	if p.lock == nil {
		return ErrOutputsNotInitialized
	}
	if err := p.lock.Out(gpio.Level(energized)); err != nil {
		return fmt.Errorf("driving lock line: %w", err)
	}
	return nil
}

// Close halts the pulse-width generator and drives every line low.
func (p *PeriphOutputs) Close() error {
	var firstErr error
	if p.pwm != nil {
		if err := p.pwm.Halt(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if p.dir != nil {
		if err := p.dir.Out(gpio.Low); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if p.lock != nil {
		if err := p.lock.Out(gpio.Low); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.dir, p.pwm, p.lock = nil, nil, nil
	return firstErr
}
