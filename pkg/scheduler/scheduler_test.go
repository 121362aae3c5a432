package scheduler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/lisanmuaddib/stablepay/pkg/scheduler"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
)

var _ = Describe("Scheduler", func() {
	var logger *logrus.Logger

	BeforeEach(func() {
		logger = logrus.New()
		logger.SetLevel(logrus.PanicLevel)
	})

	Describe("PeriodicTask", func() {
		It("rejects a missing function or interval", func() {
			_, err := scheduler.NewPeriodicTask(logger, "x", time.Second, nil)
			Expect(err).To(HaveOccurred())
			_, err = scheduler.NewPeriodicTask(logger, "x", 0, func(context.Context) error { return nil })
			Expect(err).To(HaveOccurred())
		})

		It("runs on every tick", func() {
			var calls atomic.Int32
			task, err := scheduler.NewPeriodicTask(logger, "refresh", 5*time.Millisecond, func(context.Context) error {
				calls.Add(1)
				return nil
			})
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- task.Run(ctx) }()

			Eventually(calls.Load).Should(BeNumerically(">=", 3))
			cancel()
			Eventually(done).Should(Receive(MatchError(context.Canceled)))
		})

		It("skips ticks while a run is in flight", func() {
			release := make(chan struct{})
			task, err := scheduler.NewPeriodicTask(logger, "slow", 2*time.Millisecond, func(context.Context) error {
				<-release
				return nil
			})
			Expect(err).NotTo(HaveOccurred())

			done := make(chan error, 1)
			go func() { done <- task.Run(context.Background()) }()

			Eventually(task.Skipped).Should(BeNumerically(">=", 3))
			Expect(task.Runs()).To(Equal(int64(1)))

			close(release)
			task.Stop()
			Eventually(done).Should(Receive(BeNil()))
		})

		It("keeps ticking after a failed run", func() {
			var calls atomic.Int32
			task, err := scheduler.NewPeriodicTask(logger, "flaky", 2*time.Millisecond, func(context.Context) error {
				calls.Add(1)
				return errors.New("rpc down")
			})
			Expect(err).NotTo(HaveOccurred())

			go func() { _ = task.Run(context.Background()) }()
			DeferCleanup(task.Stop)

			Eventually(calls.Load).Should(BeNumerically(">=", 2))
		})

		It("paces manual triggers", func() {
			ran := make(chan struct{}, 4)
			task, err := scheduler.NewPeriodicTask(logger, "manual", time.Hour, func(context.Context) error {
				ran <- struct{}{}
				return nil
			}, scheduler.WithTriggerLimit(time.Hour, 1))
			Expect(err).NotTo(HaveOccurred())

			go func() { _ = task.Run(context.Background()) }()
			DeferCleanup(task.Stop)

			Expect(task.Trigger()).To(BeTrue())
			Expect(task.Trigger()).To(BeFalse())
			Eventually(ran).Should(Receive())
			Consistently(ran, "50ms").ShouldNot(Receive())
		})

		It("can be stopped twice", func() {
			task, err := scheduler.NewPeriodicTask(logger, "x", time.Hour, func(context.Context) error { return nil })
			Expect(err).NotTo(HaveOccurred())
			task.Stop()
			Expect(task.Stop).NotTo(Panic())
			Expect(task.Run(context.Background())).To(Succeed())
		})
	})

	Describe("Runner", func() {
		It("stops every task when the context is cancelled", func() {
			a, _ := scheduler.NewPeriodicTask(logger, "a", time.Millisecond, func(context.Context) error { return nil })
			b, _ := scheduler.NewPeriodicTask(logger, "b", time.Millisecond, func(context.Context) error { return nil })

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- scheduler.NewRunner(logger).Run(ctx, a, b) }()

			Eventually(a.Runs).Should(BeNumerically(">", 0))
			Eventually(b.Runs).Should(BeNumerically(">", 0))
			cancel()
			Eventually(done).Should(Receive(MatchError(context.Canceled)))
		})

		It("rejects duplicate task names", func() {
			a, _ := scheduler.NewPeriodicTask(logger, "same", time.Hour, func(context.Context) error { return nil })
			b, _ := scheduler.NewPeriodicTask(logger, "same", time.Hour, func(context.Context) error { return nil })

			r := scheduler.NewRunner(logger)
			Expect(r.AddTask(a)).To(Succeed())
			Expect(r.AddTask(b)).To(MatchError(ContainSubstring("already exists")))
		})

		It("stops the others when one task fails", func() {
			failing := &failingTask{err: errors.New("boom")}
			steady, _ := scheduler.NewPeriodicTask(logger, "steady", time.Hour, func(context.Context) error { return nil })

			err := scheduler.NewRunner(logger).Run(context.Background(), failing, steady)
			Expect(err).To(MatchError(ContainSubstring("task failing failed: boom")))
		})

		It("returns when every task finishes", func() {
			a, _ := scheduler.NewPeriodicTask(logger, "a", time.Hour, func(context.Context) error { return nil })
			a.Stop()
			Expect(scheduler.NewRunner(logger).Run(context.Background(), a)).To(Succeed())
		})
	})
})

type failingTask struct {
	err error
}

func (f *failingTask) Name() string { return "failing" }

func (f *failingTask) Run(context.Context) error { return f.err }

func (f *failingTask) Stop() {}
