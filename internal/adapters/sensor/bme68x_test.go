package sensor

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type fakeRegs struct {
	regs map[byte][]byte

	calibReads int
	calibSeq   [][]byte

	writes []writeOp
}

type writeOp struct {
	reg byte
	val byte
}

func (f *fakeRegs) ReadRegU8(reg byte) (byte, error) {
	b, ok := f.regs[reg]
	if !ok || len(b) < 1 {
		return 0, errors.New("no reg")
	}
	return b[0], nil
}

func (f *fakeRegs) ReadReg(reg byte, dst []byte) error {
	if reg == regCoeff1 {
		f.calibReads++
		if idx := f.calibReads - 1; idx < len(f.calibSeq) {
			copy(dst, f.calibSeq[idx])
			return nil
		}
		for i := range dst {
			dst[i] = 0
		}
		return nil
	}
	b, ok := f.regs[reg]
	if !ok {
		return errors.New("no reg")
	}
	copy(dst, b)
	return nil
}

func (f *fakeRegs) WriteReg(reg, value byte) error {
	f.writes = append(f.writes, writeOp{reg: reg, val: value})
	return nil
}

func (f *fakeRegs) wrote(reg byte) (byte, bool) {
	for i := len(f.writes) - 1; i >= 0; i-- {
		if f.writes[i].reg == reg {
			return f.writes[i].val, true
		}
	}
	return 0, false
}

func noSleep(t *testing.T) {
	old := sleep
	sleep = func(time.Duration) {}
	t.Cleanup(func() { sleep = old })
}

// block lays register values out as a burst read starting at start.
func block(start byte, n int, regs map[byte]byte) []byte {
	b := make([]byte, n)
	for reg, v := range regs {
		if reg >= start && int(reg-start) < n {
			b[reg-start] = v
		}
	}
	return b
}

func put16(regs map[byte]byte, lsb byte, v uint16) {
	regs[lsb] = byte(v)
	regs[lsb+1] = byte(v >> 8)
}

// Coefficients read from a BME680 module, addressed by register.
func referenceRegs() map[byte]byte {
	r := map[byte]byte{}
	put16(r, 0x8A, 26474)       // t2
	r[0x8C] = 3                 // t3
	put16(r, 0x8E, 36599)       // p1
	put16(r, 0x90, s16(-10441)) // p2
	r[0x92] = 88                // p3
	put16(r, 0x94, 7132)        // p4
	put16(r, 0x96, s16(-86))    // p5
	r[0x98] = 37                // p7
	r[0x99] = 30                // p6
	put16(r, 0x9C, s16(-3004))  // p8
	put16(r, 0x9E, s16(-2320))  // p9
	r[0xA0] = 30                // p10

	// h1=807 (0x327), h2=1025 (0x401) share 0xE2.
	r[0xE1] = 0x40
	r[0xE2] = 0x17
	r[0xE3] = 0x32
	r[0xE4] = 0                // h3
	r[0xE5] = 45               // h4
	r[0xE6] = 20               // h5
	r[0xE7] = 120              // h6
	r[0xE8] = s8(-100)         // h7
	put16(r, 0xE9, 26195)      // t1
	put16(r, 0xEB, s16(-5969)) // gh2
	r[0xED] = s8(-30)          // gh1
	r[0xEE] = 18               // gh3
	return r
}

func s16(v int16) uint16 { return uint16(v) }
func s8(v int8) byte     { return byte(v) }

func validCoeff1() []byte { return block(regCoeff1, lenCoeff1, referenceRegs()) }
func validCoeff2() []byte { return block(regCoeff2, lenCoeff2, referenceRegs()) }

func newFake(variant byte, calib ...[]byte) *fakeRegs {
	if len(calib) == 0 {
		calib = [][]byte{validCoeff1()}
	}
	return &fakeRegs{
		regs: map[byte][]byte{
			regChipID:  {chipID68x},
			regVariant: {variant},
			regCoeff2:  validCoeff2(),
			regCoeff3:  {0x2A, 0, 0x10, 0, 0xF0},
		},
		calibSeq: calib,
	}
}

func TestNewBME68x(t *testing.T) {
	noSleep(t)

	Convey("Given a device that returns zero calibration once after reset", t, func() {
		f := newFake(variantGasHigh, make([]byte, lenCoeff1), validCoeff1())

		d, err := newBME68x(f, DefaultHeater)

		Convey("Then calibration is retried and the device is configured", func() {
			So(err, ShouldBeNil)
			So(f.calibReads, ShouldEqual, 2)
			So(d.cal.t1, ShouldEqual, 26195)
			So(d.cal.p1, ShouldEqual, 36599)
			So(d.cal.h1, ShouldEqual, 807)
			So(d.cal.resHeatRange, ShouldEqual, 1)
			So(d.cal.rangeSwErr, ShouldEqual, -1)

			ctrlGas, ok := f.wrote(regCtrlGas)
			So(ok, ShouldBeTrue)
			So(ctrlGas, ShouldEqual, 0x20)
			wait, _ := f.wrote(regGasWait)
			So(wait, ShouldEqual, heaterDuration(150*time.Millisecond))
		})
	})

	Convey("Given a device with the wrong chip id", t, func() {
		f := newFake(variantGasLow)
		f.regs[regChipID] = []byte{0x58}

		_, err := newBME68x(f, DefaultHeater)

		Convey("Then setup fails with ErrChipID", func() {
			So(errors.Is(err, ErrChipID), ShouldBeTrue)
		})
	})

	Convey("Given a device whose calibration never becomes valid", t, func() {
		f := newFake(variantGasLow, make([]byte, lenCoeff1))
		_, err := newBME68x(f, DefaultHeater)
		So(err, ShouldNotBeNil)
		So(f.calibReads, ShouldEqual, 3)
	})

	Convey("A BME680 uses the low-range gas enable bit", t, func() {
		f := newFake(variantGasLow)
		_, err := newBME68x(f, DefaultHeater)
		So(err, ShouldBeNil)
		v, _ := f.wrote(regCtrlGas)
		So(v, ShouldEqual, 0x10)
	})
}

func TestParseCalib_RegisterMap(t *testing.T) {
	Convey("Given one coefficient written at its datasheet register", t, func() {
		type field struct {
			name string
			lsb  byte
			wide bool
			get  func(calib) int64
		}
		fields := []field{
			{"t2", 0x8A, true, func(c calib) int64 { return int64(c.t2) }},
			{"t3", 0x8C, false, func(c calib) int64 { return int64(c.t3) }},
			{"p1", 0x8E, true, func(c calib) int64 { return int64(c.p1) }},
			{"p2", 0x90, true, func(c calib) int64 { return int64(c.p2) }},
			{"p3", 0x92, false, func(c calib) int64 { return int64(c.p3) }},
			{"p4", 0x94, true, func(c calib) int64 { return int64(c.p4) }},
			{"p5", 0x96, true, func(c calib) int64 { return int64(c.p5) }},
			{"p7", 0x98, false, func(c calib) int64 { return int64(c.p7) }},
			{"p6", 0x99, false, func(c calib) int64 { return int64(c.p6) }},
			{"p8", 0x9C, true, func(c calib) int64 { return int64(c.p8) }},
			{"p9", 0x9E, true, func(c calib) int64 { return int64(c.p9) }},
			{"p10", 0xA0, false, func(c calib) int64 { return int64(c.p10) }},
			{"h3", 0xE4, false, func(c calib) int64 { return int64(c.h3) }},
			{"h4", 0xE5, false, func(c calib) int64 { return int64(c.h4) }},
			{"h5", 0xE6, false, func(c calib) int64 { return int64(c.h5) }},
			{"h6", 0xE7, false, func(c calib) int64 { return int64(c.h6) }},
			{"h7", 0xE8, false, func(c calib) int64 { return int64(c.h7) }},
			{"t1", 0xE9, true, func(c calib) int64 { return int64(c.t1) }},
			{"gh2", 0xEB, true, func(c calib) int64 { return int64(c.gh2) }},
			{"gh1", 0xED, false, func(c calib) int64 { return int64(c.gh1) }},
			{"gh3", 0xEE, false, func(c calib) int64 { return int64(c.gh3) }},
		}

		for _, f := range fields {
			Convey("Then "+f.name+" is decoded from its own register", func() {
				regs := map[byte]byte{}
				want := int64(0x25)
				if f.wide {
					put16(regs, f.lsb, 0x1234)
					want = 0x1234
				} else {
					regs[f.lsb] = 0x25
				}
				c := append(block(regCoeff1, lenCoeff1, regs), block(regCoeff2, lenCoeff2, regs)...)
				cal := parseCalib(c, make([]byte, lenCoeff3))

				So(f.get(cal), ShouldEqual, want)
			})
		}

		Convey("Then h1 and h2 are split across 0xE1..0xE3", func() {
			regs := map[byte]byte{0xE1: 0xAB, 0xE2: 0xCD, 0xE3: 0xEF}
			c := append(block(regCoeff1, lenCoeff1, regs), block(regCoeff2, lenCoeff2, regs)...)
			cal := parseCalib(c, make([]byte, lenCoeff3))

			So(cal.h2, ShouldEqual, 0xABC)
			So(cal.h1, ShouldEqual, 0xEFD)
		})

		Convey("Then the heater fields come from 0x00, 0x02 and 0x04", func() {
			c := make([]byte, lenCoeff1+lenCoeff2)
			cal := parseCalib(c, []byte{0x05, 0, 0x20, 0, 0xE0})

			So(cal.resHeatVal, ShouldEqual, 5)
			So(cal.resHeatRange, ShouldEqual, 2)
			So(cal.rangeSwErr, ShouldEqual, -2)
		})
	})
}

func TestBME68x_Compensation(t *testing.T) {
	noSleep(t)

	Convey("Given a device calibrated with the reference coefficients", t, func() {
		d, err := newBME68x(newFake(variantGasHigh), DefaultHeater)
		So(err, ShouldBeNil)

		Convey("When known ADC values are compensated", func() {
			tFine, tempC := d.compensateTemp(500000)
			press := d.compensatePress(350000, tFine)
			hum := d.compensateHum(20000, tFine)

			Convey("Then the floating point reference results are reproduced", func() {
				So(tFine, ShouldAlmostEqual, 130707.798432, 0.001)
				So(tempC, ShouldAlmostEqual, 25.528867, 0.0001)
				So(press, ShouldAlmostEqual, 99793.0984, 0.01)
				So(hum, ShouldAlmostEqual, 35.499375, 0.0001)
			})
		})
	})
}

func TestBME68x_Sample(t *testing.T) {
	noSleep(t)

	field := func(status byte) []byte {
		b := make([]byte, lenField)
		b[0] = statusNewData
		b[2], b[3], b[4] = 0x4B, 0x6A, 0x00
		b[5], b[6], b[7] = 0x7E, 0x40, 0x00
		b[8], b[9] = 0x5A, 0x00
		b[15], b[16] = 0x80, status
		return b
	}

	Convey("Given a BME688", t, func() {
		f := newFake(variantGasHigh)
		d, err := newBME68x(f, DefaultHeater)
		So(err, ShouldBeNil)

		Convey("When a valid measurement is ready", func() {
			f.regs[regField0] = field(gasValid | heatStable | 0x04)
			r, err := d.Sample(context.Background())

			Convey("Then the reading is compensated and carries no vendor estimate", func() {
				So(err, ShouldBeNil)
				So(r.RawGasResistance, ShouldEqual, gasHigh(0x200, 4))
				So(r.Humidity, ShouldBeBetweenOrEqual, 0, 100)
				So(r.RawPressure, ShouldBeGreaterThan, 0)
				So(r.Vendor, ShouldBeNil)
				mode, _ := f.wrote(regCtrlMea)
				So(mode&0x03, ShouldEqual, modeForced)
			})
		})

		Convey("When the heater did not stabilise", func() {
			f.regs[regField0] = field(gasValid)
			_, err := d.Sample(context.Background())
			So(errors.Is(err, ErrReadFailed), ShouldBeTrue)
		})

		Convey("When the measurement never completes", func() {
			b := field(gasValid | heatStable)
			b[0] = 0
			f.regs[regField0] = b
			_, err := d.Sample(context.Background())
			So(errors.Is(err, ErrNoData), ShouldBeTrue)
		})

		Convey("When the context is already cancelled", func() {
			f.regs[regField0] = field(gasValid | heatStable)
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := d.Sample(ctx)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestGasAndHeaterMath(t *testing.T) {
	Convey("High range gas resistance follows the BME688 formula", t, func() {
		So(gasHigh(512, 0), ShouldEqual, 64e6)
		So(gasHigh(512, 5), ShouldEqual, 2e6)
		So(gasHigh(1023, 5), ShouldBeLessThan, gasHigh(600, 5))
	})

	Convey("Heater durations are encoded with a multiplier", t, func() {
		So(heaterDuration(20*time.Millisecond), ShouldEqual, 20)
		So(heaterDuration(100*time.Millisecond), ShouldEqual, 25+64)
		So(heaterDuration(150*time.Millisecond), ShouldEqual, 37+64)
		So(heaterDuration(5*time.Second), ShouldEqual, 0xFF)
	})
}

func TestProbe(t *testing.T) {
	noSleep(t)

	Convey("Given a device that only answers on the alternate address", t, func() {
		opened := []uint16{}
		open := func(a uint16) regIO {
			opened = append(opened, a)
			if a == AddrSecondary {
				return newFake(variantGasHigh)
			}
			return &fakeRegs{regs: map[byte][]byte{}}
		}

		d, addr, err := probe([]uint16{AddrPrimary, AddrSecondary}, DefaultHeater, open)

		Convey("Then the alternate address is used", func() {
			So(err, ShouldBeNil)
			So(d, ShouldNotBeNil)
			So(addr, ShouldEqual, AddrSecondary)
			So(opened, ShouldResemble, []uint16{AddrPrimary, AddrSecondary})
		})
	})

	Convey("Given no device on either address", t, func() {
		_, _, err := probe([]uint16{AddrPrimary, AddrSecondary}, DefaultHeater, func(uint16) regIO {
			f := newFake(variantGasLow)
			f.regs[regChipID] = []byte{0}
			return f
		})
		So(errors.Is(err, ErrChipID), ShouldBeTrue)
		So(err.Error(), ShouldContainSubstring, "0x76")
		So(err.Error(), ShouldContainSubstring, "0x77")
	})
}
