package sensor

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/okian/airsense/internal/domain/model"
)

var sleep = time.Sleep

// Minimal BME680/BME688 driver: forced mode, one heater step, float
// compensation. There is no on-chip air quality estimator, so readings from
// this driver never carry a vendor estimate.

const (
	// AddrPrimary is the default bus address; AddrSecondary is tried when the
	// primary address does not answer.
	AddrPrimary   = 0x76
	AddrSecondary = 0x77

	regChipID  = 0xD0
	chipID68x  = 0x61
	regVariant = 0xF0

	regReset = 0xE0
	resetCmd = 0xB6

	regCoeff1 = 0x89
	lenCoeff1 = 25
	regCoeff2 = 0xE1
	lenCoeff2 = 16
	regCoeff3 = 0x00
	lenCoeff3 = 5

	regField0  = 0x1D
	lenField   = 17
	regResHeat = 0x5A
	regGasWait = 0x64
	regCtrlGas = 0x71
	regCtrlHum = 0x72
	regCtrlMea = 0x74
	regConfig  = 0x75

	modeForced = 0x01

	statusNewData = 0x80
	gasValid      = 0x20
	heatStable    = 0x10

	variantGasLow  = 0x00
	variantGasHigh = 0x01

	osX1  = 0x01
	osX2  = 0x02
	osX16 = 0x05

	pollAttempts = 10
)

type regIO interface {
	ReadRegU8(reg byte) (byte, error)
	ReadReg(reg byte, dst []byte) error
	WriteReg(reg, value byte) error
}

// HeaterProfile is the single heater step used for every measurement.
type HeaterProfile struct {
	TempC    float64
	Duration time.Duration
}

// DefaultHeater matches the vendor reference configuration.
var DefaultHeater = HeaterProfile{TempC: 320, Duration: 150 * time.Millisecond}

type calib struct {
	t1 uint16
	t2 int16
	t3 int8

	p1  uint16
	p2  int16
	p3  int8
	p4  int16
	p5  int16
	p6  int8
	p7  int8
	p8  int16
	p9  int16
	p10 uint8

	h1 uint16
	h2 uint16
	h3 int8
	h4 int8
	h5 int8
	h6 uint8
	h7 int8

	gh1 int8
	gh2 int16
	gh3 int8

	resHeatRange uint8
	resHeatVal   int8
	rangeSwErr   int8
}

// BME68x is a forced-mode driver over a register interface.
type BME68x struct {
	dev     regIO
	variant byte
	heater  HeaterProfile
	cal     calib
	ambient float64
}

func newBME68x(dev regIO, heater HeaterProfile) (*BME68x, error) {
	if dev == nil {
		return nil, errors.New("bme68x: dev is nil")
	}
	d := &BME68x{dev: dev, heater: heater, ambient: 25}
	if err := d.init(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *BME68x) init() error {
	id, err := d.dev.ReadRegU8(regChipID)
	if err != nil {
		return errors.Wrap(err, "bme68x: id read failed")
	}
	if id != chipID68x {
		return errors.Wrapf(ErrChipID, "bme68x: chip id=0x%02X want 0x%02X", id, chipID68x)
	}

	_ = d.dev.WriteReg(regReset, resetCmd)
	sleep(10 * time.Millisecond)

	if d.variant, err = d.dev.ReadRegU8(regVariant); err != nil {
		return errors.Wrap(err, "bme68x: variant read failed")
	}

	// Calibration can read as zeros right after reset.
	var calErr error
	for i := 0; i < 3; i++ {
		if calErr = d.readCalibration(); calErr == nil && d.cal.t1 != 0 && d.cal.p1 != 0 {
			break
		}
		if calErr == nil {
			calErr = errors.Errorf("bme68x: calibration invalid (t1=%d p1=%d)", d.cal.t1, d.cal.p1)
		}
		sleep(5 * time.Millisecond)
	}
	if calErr != nil {
		return calErr
	}

	// Filter off, humidity x1, temperature x2, pressure x16.
	writes := []struct{ reg, val byte }{
		{regConfig, 0x00},
		{regCtrlHum, osX1},
		{regCtrlMea, osX2<<5 | osX16<<2},
		{regGasWait, heaterDuration(d.heater.Duration)},
		{regCtrlGas, d.runGasBits()},
	}
	for _, w := range writes {
		if err := d.dev.WriteReg(w.reg, w.val); err != nil {
			return errors.Wrapf(err, "bme68x: write 0x%02X failed", w.reg)
		}
	}
	return nil
}

func (d *BME68x) runGasBits() byte {
	if d.variant == variantGasHigh {
		return 0x20
	}
	return 0x10
}

func (d *BME68x) readCalibration() error {
	c1 := make([]byte, lenCoeff1)
	c2 := make([]byte, lenCoeff2)
	c3 := make([]byte, lenCoeff3)
	if err := d.dev.ReadReg(regCoeff1, c1); err != nil {
		return errors.Wrap(err, "bme68x: read calib failed")
	}
	if err := d.dev.ReadReg(regCoeff2, c2); err != nil {
		return errors.Wrap(err, "bme68x: read calib failed")
	}
	if err := d.dev.ReadReg(regCoeff3, c3); err != nil {
		return errors.Wrap(err, "bme68x: read calib failed")
	}
	d.cal = parseCalib(append(c1, c2...), c3)
	return nil
}

func u16(lsb, msb byte) uint16 { return uint16(msb)<<8 | uint16(lsb) }

// parseCalib decodes the coefficient blocks. c holds 0x89..0xA1 followed by
// 0xE1..0xF0, so c[i] is register 0x89+i for i < lenCoeff1.
func parseCalib(c, h []byte) calib {
	return calib{
		t2: int16(u16(c[1], c[2])),
		t3: int8(c[3]),

		p1:  u16(c[5], c[6]),
		p2:  int16(u16(c[7], c[8])),
		p3:  int8(c[9]),
		p4:  int16(u16(c[11], c[12])),
		p5:  int16(u16(c[13], c[14])),
		p7:  int8(c[15]),
		p6:  int8(c[16]),
		p8:  int16(u16(c[19], c[20])),
		p9:  int16(u16(c[21], c[22])),
		p10: c[23],

		h2: uint16(c[25])<<4 | uint16(c[26])>>4,
		h1: uint16(c[27])<<4 | uint16(c[26]&0x0F),
		h3: int8(c[28]),
		h4: int8(c[29]),
		h5: int8(c[30]),
		h6: c[31],
		h7: int8(c[32]),

		t1: u16(c[33], c[34]),

		gh2: int16(u16(c[35], c[36])),
		gh1: int8(c[37]),
		gh3: int8(c[38]),

		resHeatVal:   int8(h[0]),
		resHeatRange: (h[2] & 0x30) >> 4,
		rangeSwErr:   int8(h[4]&0xF0) >> 4,
	}
}

// Sample triggers one forced measurement and returns the compensated values.
// Pressure is in pascals and gas resistance in ohms.
func (d *BME68x) Sample(ctx context.Context) (model.RawReading, error) {
	start := time.Now()

	if err := d.dev.WriteReg(regResHeat, d.heaterResistance(d.heater.TempC)); err != nil {
		return model.RawReading{}, errors.Wrap(ErrReadFailed, err.Error())
	}
	if err := d.dev.WriteReg(regCtrlMea, osX2<<5|osX16<<2|modeForced); err != nil {
		return model.RawReading{}, errors.Wrap(ErrReadFailed, err.Error())
	}

	wait := measureDuration() + d.heater.Duration
	buf := make([]byte, lenField)
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return model.RawReading{}, ctx.Err()
		default:
		}
		sleep(wait)
		if err := d.dev.ReadReg(regField0, buf); err != nil {
			return model.RawReading{}, errors.Wrap(ErrReadFailed, err.Error())
		}
		if buf[0]&statusNewData != 0 {
			break
		}
		if i >= pollAttempts {
			return model.RawReading{}, errors.Wrap(ErrNoData, "bme68x: measurement did not complete")
		}
		wait = 5 * time.Millisecond
	}

	adcP := uint32(buf[2])<<12 | uint32(buf[3])<<4 | uint32(buf[4])>>4
	adcT := uint32(buf[5])<<12 | uint32(buf[6])<<4 | uint32(buf[7])>>4
	adcH := uint16(buf[8])<<8 | uint16(buf[9])

	tFine, tempC := d.compensateTemp(adcT)
	r := model.RawReading{
		Temperature: tempC,
		Humidity:    d.compensateHum(adcH, tFine),
		RawPressure: d.compensatePress(adcP, tFine),
		CapturedAt:  time.Now(),
	}
	d.ambient = tempC

	var adcG uint16
	var gasRange, status byte
	if d.variant == variantGasHigh {
		adcG = uint16(buf[15])<<2 | uint16(buf[16])>>6
		gasRange, status = buf[16]&0x0F, buf[16]
		r.RawGasResistance = gasHigh(adcG, gasRange)
	} else {
		adcG = uint16(buf[13])<<2 | uint16(buf[14])>>6
		gasRange, status = buf[14]&0x0F, buf[14]
		r.RawGasResistance = d.gasLow(adcG, gasRange)
	}
	if status&gasValid == 0 || status&heatStable == 0 {
		return model.RawReading{}, errors.Wrap(ErrReadFailed, "bme68x: gas reading not valid")
	}

	r.ReadDuration = time.Since(start)
	return r, nil
}

func (d *BME68x) compensateTemp(adc uint32) (tFine, tempC float64) {
	a := float64(adc)
	t1 := float64(d.cal.t1)
	var1 := (a/16384.0 - t1/1024.0) * float64(d.cal.t2)
	var2 := a/131072.0 - t1/8192.0
	var2 = var2 * var2 * float64(d.cal.t3) * 16.0
	tFine = var1 + var2
	return tFine, tFine / 5120.0
}

func (d *BME68x) compensatePress(adc uint32, tFine float64) float64 {
	c := d.cal
	var1 := tFine/2.0 - 64000.0
	var2 := var1 * var1 * float64(c.p6) / 131072.0
	var2 += var1 * float64(c.p5) * 2.0
	var2 = var2/4.0 + float64(c.p4)*65536.0
	var1 = (float64(c.p3)*var1*var1/16384.0 + float64(c.p2)*var1) / 524288.0
	var1 = (1.0 + var1/32768.0) * float64(c.p1)
	if var1 == 0 {
		return 0
	}
	p := 1048576.0 - float64(adc)
	p = (p - var2/4096.0) * 6250.0 / var1
	var1 = float64(c.p9) * p * p / 2147483648.0
	var2 = p * float64(c.p8) / 32768.0
	s := p / 256.0
	var3 := s * s * s * float64(c.p10) / 131072.0
	return p + (var1+var2+var3+float64(c.p7)*128.0)/16.0
}

func (d *BME68x) compensateHum(adc uint16, tFine float64) float64 {
	c := d.cal
	t := tFine / 5120.0
	var1 := float64(adc) - (float64(c.h1)*16.0 + float64(c.h3)/2.0*t)
	var2 := var1 * (float64(c.h2) / 262144.0 * (1.0 + float64(c.h4)/16384.0*t + float64(c.h5)/1048576.0*t*t))
	var3 := float64(c.h6) / 16384.0
	var4 := float64(c.h7) / 2097152.0
	h := var2 + (var3+var4*t)*var2*var2
	switch {
	case h > 100:
		return 100
	case h < 0:
		return 0
	}
	return h
}

var (
	gasK1 = [16]float64{0, 0, 0, 0, 0, -1, 0, -0.8, 0, 0, -0.2, -0.5, 0, -1, 0, 0}
	gasK2 = [16]float64{0, 0, 0, 0, 0.1, 0.7, 0, -0.8, -0.1, 0, 0, 0, 0, 0, 0, 0}
)

func (d *BME68x) gasLow(adc uint16, rng byte) float64 {
	var1 := 1340.0 + 5.0*float64(d.cal.rangeSwErr)
	var2 := var1 * (1.0 + gasK1[rng]/100.0)
	var3 := 1.0 + gasK2[rng]/100.0
	return 1.0 / (var3 * 0.000000125 * float64(uint32(1)<<rng) * ((float64(adc)-512.0)/var2 + 1.0))
}

func gasHigh(adc uint16, rng byte) float64 {
	var1 := float64(uint32(262144) >> rng)
	var2 := 4096.0 + (float64(adc)-512.0)*3.0
	return 1000000.0 * var1 / var2
}

func (d *BME68x) heaterResistance(target float64) byte {
	if target > 400 {
		target = 400
	}
	c := d.cal
	var1 := float64(c.gh1)/16.0 + 49.0
	var2 := float64(c.gh2)/32768.0*0.0005 + 0.00235
	var3 := float64(c.gh3) / 1024.0
	var4 := var1 * (1.0 + var2*target)
	var5 := var4 + var3*d.ambient
	r := 3.4 * (var5*(4.0/(4.0+float64(c.resHeatRange)))*(1.0/(1.0+float64(c.resHeatVal)*0.002)) - 25)
	switch {
	case r < 0:
		return 0
	case r > 255:
		return 255
	}
	return byte(r)
}

// heaterDuration encodes a wait time as the 6-bit value plus 2-bit multiplier
// the gas_wait register expects.
func heaterDuration(d time.Duration) byte {
	ms := d.Milliseconds()
	if ms >= 0xFC0 {
		return 0xFF
	}
	var factor int64
	for ms > 0x3F {
		ms /= 4
		factor++
	}
	return byte(ms + factor*64)
}

// measureDuration approximates the TPH conversion time for the oversampling
// configured in init.
func measureDuration() time.Duration {
	cycles := 2 + 16 + 1
	us := cycles*1963 + 477*4 + 477*5 + 1000
	return time.Duration(us) * time.Microsecond
}
