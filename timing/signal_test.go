package timing

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestSignal(clock Clock, freq Freq, mode DeltaMode) *PeriodicSignal {
	return MakeSignalBuilder().
		WithClock(clock).
		WithFreq(freq).
		WithDeltaMode(mode).
		Build()
}

var _ = Describe("PeriodicSignal", func() {
	var (
		clock *ManualClock
	)

	BeforeEach(func() {
		clock = NewManualClock(t0)
	})

	Context("10Hz scenario", func() {
		It("should catch up in measured mode", func() {
			s := newTestSignal(clock, 10*Hz, MeasuredDelta)

			Expect(s.Poll()).To(BeFalse())

			clock.Advance(250 * time.Millisecond)
			Expect(s.Poll()).To(BeTrue())
			Expect(s.TickCount()).To(Equal(uint64(2)))
			Expect(s.LastDelta()).To(Equal(250 * time.Millisecond))

			Expect(s.Poll()).To(BeFalse())
			Expect(s.TickCount()).To(Equal(uint64(2)))
		})

		It("should report the nominal period in perfect mode", func() {
			s := newTestSignal(clock, 10*Hz, PerfectDelta)

			Expect(s.Poll()).To(BeFalse())

			clock.Advance(250 * time.Millisecond)
			Expect(s.Poll()).To(BeTrue())
			Expect(s.TickCount()).To(Equal(uint64(2)))
			Expect(s.LastDelta()).To(Equal(100 * time.Millisecond))

			Expect(s.Poll()).To(BeFalse())
		})
	})

	It("should start with no delta", func() {
		s := newTestSignal(clock, 10*Hz, PerfectDelta)

		Expect(s.LastDelta()).To(BeZero())
		Expect(s.TickCount()).To(BeZero())
		Expect(s.StartTime()).To(Equal(t0))
		Expect(s.LastTickTime()).To(Equal(t0))
	})

	It("should fire exactly on the period boundary", func() {
		s := newTestSignal(clock, 10*Hz, MeasuredDelta)

		clock.Advance(100*time.Millisecond - time.Nanosecond)
		Expect(s.Poll()).To(BeFalse())

		clock.Advance(time.Nanosecond)
		Expect(s.Poll()).To(BeTrue())
		Expect(s.TickCount()).To(Equal(uint64(1)))
	})

	It("should fire once per period without drift when polled fast", func() {
		s := newTestSignal(clock, 50*Hz, MeasuredDelta)

		ticks := 0
		var tickTimes []time.Time
		for i := 0; i < 1000; i++ {
			clock.Advance(time.Millisecond)
			if s.Poll() {
				ticks++
				tickTimes = append(tickTimes, clock.Now())
				Expect(s.LastDelta()).To(Equal(20 * time.Millisecond))
			}
		}

		Expect(ticks).To(Equal(50))
		Expect(s.TickCount()).To(Equal(uint64(50)))
		Expect(tickTimes[len(tickTimes)-1].Sub(t0)).To(Equal(time.Second))
	})

	It("should not accumulate drift with jittery polling", func() {
		s := newTestSignal(clock, 60*Hz, MeasuredDelta)

		steps := []time.Duration{
			3 * time.Millisecond,
			7 * time.Millisecond,
			1 * time.Millisecond,
			5 * time.Millisecond,
		}

		ticks := 0
		for i := 0; clock.Now().Sub(t0) < 10*time.Second; i++ {
			clock.Advance(steps[i%len(steps)])
			if s.Poll() {
				ticks++
			}
		}

		// The poll interval never exceeds a period, so no tick is skipped.
		Expect(uint64(ticks)).To(Equal(s.TickCount()))
		expected := uint64(clock.Now().Sub(t0) / s.Period())
		Expect(s.TickCount()).To(Equal(expected))
	})

	It("should catch up to the latest tick in one poll", func() {
		s := newTestSignal(clock, 10*Hz, MeasuredDelta)

		clock.Advance(7*100*time.Millisecond + 30*time.Millisecond)

		Expect(s.Poll()).To(BeTrue())
		Expect(s.TickCount()).To(Equal(uint64(7)))
		Expect(s.Poll()).To(BeFalse())
		Expect(s.TickCount()).To(Equal(uint64(7)))
	})

	It("should return true on every poll when polled slower than the rate", func() {
		s := newTestSignal(clock, 10*Hz, MeasuredDelta)

		for i := 0; i < 5; i++ {
			clock.Advance(300 * time.Millisecond)
			Expect(s.Poll()).To(BeTrue())
		}

		Expect(s.TickCount()).To(Equal(uint64(15)))
	})

	It("should measure the real gap between claimed ticks", func() {
		s := newTestSignal(clock, 10*Hz, MeasuredDelta)

		clock.Advance(120 * time.Millisecond)
		Expect(s.Poll()).To(BeTrue())
		Expect(s.LastDelta()).To(Equal(120 * time.Millisecond))

		clock.Advance(95 * time.Millisecond)
		Expect(s.Poll()).To(BeTrue())
		Expect(s.LastDelta()).To(Equal(95 * time.Millisecond))
		Expect(s.LastTickTime()).To(Equal(t0.Add(215 * time.Millisecond)))
	})

	It("should always report the period in perfect mode", func() {
		s := newTestSignal(clock, 10*Hz, PerfectDelta)

		for _, gap := range []time.Duration{
			120 * time.Millisecond,
			95 * time.Millisecond,
			430 * time.Millisecond,
		} {
			clock.Advance(gap)
			Expect(s.Poll()).To(BeTrue())
			Expect(s.LastDelta()).To(Equal(100 * time.Millisecond))
		}
	})

	Context("IsDue", func() {
		It("should not change the outcome of the next poll", func() {
			s := newTestSignal(clock, 10*Hz, MeasuredDelta)

			Expect(s.IsDue()).To(BeFalse())

			clock.Advance(230 * time.Millisecond)
			for i := 0; i < 100; i++ {
				Expect(s.IsDue()).To(BeTrue())
			}
			Expect(s.TickCount()).To(BeZero())

			Expect(s.Poll()).To(BeTrue())
			Expect(s.TickCount()).To(Equal(uint64(2)))
			Expect(s.IsDue()).To(BeFalse())
		})
	})

	Context("cycle progress", func() {
		It("should be near 0 right after a tick and near 1 right before the next",
			func() {
				s := newTestSignal(clock, 10*Hz, MeasuredDelta)

				clock.Advance(101 * time.Millisecond)
				Expect(s.Poll()).To(BeTrue())
				Expect(s.CycleProgress()).To(BeNumerically("~", 0.01, 1e-9))

				clock.Advance(98 * time.Millisecond)
				Expect(s.CycleProgress()).To(BeNumerically("~", 0.99, 1e-9))
			})

		It("should wrap when a new cycle has not been claimed", func() {
			s := newTestSignal(clock, 10*Hz, MeasuredDelta)

			clock.Advance(110 * time.Millisecond)
			Expect(s.CycleProgress()).To(BeNumerically("~", 0.1, 1e-9))
			Expect(s.CycleProgressClamped()).To(Equal(1.0))

			Expect(s.Poll()).To(BeTrue())
			Expect(s.CycleProgressClamped()).To(BeNumerically("~", 0.1, 1e-9))
		})

		It("should compute progress at a given instant", func() {
			s := newTestSignal(clock, 10*Hz, MeasuredDelta)

			Expect(s.CycleProgressAt(t0.Add(25 * time.Millisecond))).
				To(BeNumerically("~", 0.25, 1e-9))
			Expect(s.CycleProgressAt(t0.Add(-time.Second))).To(Equal(0.0))
		})

		It("should remember the progress at the last poll", func() {
			s := newTestSignal(clock, 10*Hz, MeasuredDelta)

			clock.Advance(40 * time.Millisecond)
			Expect(s.Poll()).To(BeFalse())
			Expect(s.ProgressAtLastPoll()).To(BeNumerically("~", 0.4, 1e-9))

			clock.Advance(70 * time.Millisecond)
			Expect(s.ProgressAtLastPoll()).To(BeNumerically("~", 0.4, 1e-9))
		})

		It("should stay within [0,1]", func() {
			s := newTestSignal(clock, 7*Hz, MeasuredDelta)

			for i := 0; i < 500; i++ {
				clock.Advance(3 * time.Millisecond)
				Expect(s.CycleProgress()).To(BeNumerically(">=", 0))
				Expect(s.CycleProgress()).To(BeNumerically("<=", 1))
				Expect(s.CycleProgressClamped()).To(BeNumerically(">=", 0))
				Expect(s.CycleProgressClamped()).To(BeNumerically("<=", 1))
				if i%11 == 0 {
					s.Poll()
				}
			}
		})

		It("should never regress the clamped progress between polls", func() {
			s := newTestSignal(clock, 10*Hz, MeasuredDelta)

			prev := s.CycleProgressClamped()
			for i := 0; i < 400; i++ {
				clock.Advance(7 * time.Millisecond)

				if i%25 == 0 && s.Poll() {
					prev = s.CycleProgressClamped()
					continue
				}

				curr := s.CycleProgressClamped()
				Expect(curr).To(BeNumerically(">=", prev))
				prev = curr
			}
		})
	})

	Context("restart", func() {
		It("should reset the state but keep frequency and mode", func() {
			s := newTestSignal(clock, 10*Hz, PerfectDelta)

			clock.Advance(350 * time.Millisecond)
			Expect(s.Poll()).To(BeTrue())

			clock.Advance(5 * time.Millisecond)
			s.Restart()

			Expect(s.TickCount()).To(BeZero())
			Expect(s.LastDelta()).To(BeZero())
			Expect(s.ProgressAtLastPoll()).To(BeZero())
			Expect(s.StartTime()).To(Equal(t0.Add(355 * time.Millisecond)))
			Expect(s.LastTickTime()).To(Equal(s.StartTime()))
			Expect(s.Freq()).To(Equal(10 * Hz))
			Expect(s.DeltaMode()).To(Equal(PerfectDelta))
		})

		It("should behave like a fresh signal", func() {
			restarted := newTestSignal(clock, 10*Hz, MeasuredDelta)
			clock.Advance(730 * time.Millisecond)
			Expect(restarted.Poll()).To(BeTrue())

			restarted.Restart()
			fresh := newTestSignal(clock, 10*Hz, MeasuredDelta)

			for _, gap := range []time.Duration{
				0, 40 * time.Millisecond, 210 * time.Millisecond,
				5 * time.Millisecond, 100 * time.Millisecond,
			} {
				clock.Advance(gap)
				Expect(restarted.Poll()).To(Equal(fresh.Poll()))
				Expect(restarted.Snapshot()).To(Equal(fresh.Snapshot()))
			}
		})
	})

	It("should report the next tick time", func() {
		s := newTestSignal(clock, 10*Hz, MeasuredDelta)
		Expect(s.NextTickTime()).To(Equal(t0.Add(100 * time.Millisecond)))

		clock.Advance(340 * time.Millisecond)
		s.Poll()
		Expect(s.NextTickTime()).To(Equal(t0.Add(400 * time.Millisecond)))
	})

	It("should take a consistent snapshot", func() {
		s := newTestSignal(clock, 10*Hz, PerfectDelta)

		clock.Advance(150 * time.Millisecond)
		Expect(s.Poll()).To(BeTrue())
		clock.Advance(80 * time.Millisecond)

		snap := s.Snapshot()
		Expect(snap.TickCount).To(Equal(uint64(1)))
		Expect(snap.Period).To(Equal(100 * time.Millisecond))
		Expect(snap.DeltaMode).To(Equal("perfect"))
		Expect(snap.TimeModel).To(Equal("realtime"))
		Expect(snap.LastDelta).To(Equal(100 * time.Millisecond))
		Expect(snap.Due).To(BeTrue())
		Expect(snap.CycleProgress).To(BeNumerically("~", 0.3, 1e-9))
		Expect(snap.CycleProgressClamped).To(Equal(1.0))
		Expect(snap.SampledAt).To(Equal(t0.Add(230 * time.Millisecond)))
		Expect(s.TickCount()).To(Equal(uint64(1)))
	})

	Context("with a mocked clock", func() {
		var (
			mockCtrl *gomock.Controller
			mock     *MockClock
		)

		BeforeEach(func() {
			mockCtrl = gomock.NewController(GinkgoT())
			mock = NewMockClock(mockCtrl)
		})

		AfterEach(func() {
			mockCtrl.Finish()
		})

		It("should sample the clock once per operation", func() {
			mock.EXPECT().Now().Return(t0)
			s := newTestSignal(mock, 10*Hz, MeasuredDelta)

			mock.EXPECT().Now().Return(t0.Add(150 * time.Millisecond))
			Expect(s.IsDue()).To(BeTrue())

			mock.EXPECT().Now().Return(t0.Add(160 * time.Millisecond))
			Expect(s.Poll()).To(BeTrue())
			Expect(s.LastDelta()).To(Equal(160 * time.Millisecond))
		})

		It("should not sample the clock for the last delta", func() {
			mock.EXPECT().Now().Return(t0)
			s := newTestSignal(mock, 10*Hz, MeasuredDelta)

			Expect(s.LastDelta()).To(BeZero())
			Expect(s.TickCount()).To(BeZero())
		})
	})

	It("should tick with the real clock", func() {
		s := NewPeriodicSignal(20*Hz, MeasuredDelta)

		Expect(s.Poll()).To(BeFalse())

		time.Sleep(70 * time.Millisecond)

		Expect(s.Poll()).To(BeTrue())
		Expect(s.LastDelta()).To(BeNumerically(">=", 50*time.Millisecond))
		Expect(s.Poll()).To(BeFalse())
	})
})

var _ = Describe("SignalBuilder", func() {
	It("should use defaults", func() {
		s := MakeSignalBuilder().Build()

		Expect(s.Freq()).To(Equal(1 * Hz))
		Expect(s.DeltaMode()).To(Equal(MeasuredDelta))
		Expect(s.TimeModel()).To(Equal(Realtime))
	})

	It("should refuse the tick-latched time model", func() {
		_, err := MakeSignalBuilder().WithTimeModel(TickLatched).TryBuild()
		Expect(err).To(MatchError(ErrTimeModelUnsupported))

		Expect(func() {
			MakeSignalBuilder().WithTimeModel(TickLatched).Build()
		}).To(Panic())
	})

	It("should refuse a non-positive frequency", func() {
		_, err := MakeSignalBuilder().WithFreq(0).TryBuild()
		Expect(err).To(MatchError(ErrNonPositiveFreq))

		Expect(func() { NewPeriodicSignal(-1, MeasuredDelta) }).To(Panic())
	})

	It("should refuse an unknown delta mode", func() {
		_, err := MakeSignalBuilder().WithDeltaMode(DeltaMode(7)).TryBuild()
		Expect(err).To(HaveOccurred())
	})

	It("should refuse a nil clock", func() {
		_, err := MakeSignalBuilder().WithClock(nil).TryBuild()
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ManualClock", func() {
	It("should only move forward", func() {
		c := NewManualClock(t0)

		c.Advance(time.Second)
		Expect(c.Now()).To(Equal(t0.Add(time.Second)))

		c.Advance(-time.Hour)
		Expect(c.Now()).To(Equal(t0.Add(time.Second)))

		c.Set(t0)
		Expect(c.Now()).To(Equal(t0.Add(time.Second)))

		c.Set(t0.Add(time.Minute))
		Expect(c.Now()).To(Equal(t0.Add(time.Minute)))
	})
})

var _ = Describe("DeltaMode", func() {
	It("should parse its names", func() {
		m, err := ParseDeltaMode("Perfect")
		Expect(err).NotTo(HaveOccurred())
		Expect(m).To(Equal(PerfectDelta))

		m, err = ParseDeltaMode(MeasuredDelta.String())
		Expect(err).NotTo(HaveOccurred())
		Expect(m).To(Equal(MeasuredDelta))

		_, err = ParseDeltaMode("exact")
		Expect(err).To(HaveOccurred())
	})
})
