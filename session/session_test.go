package session_test

import (
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/f3rmion/fyenroll/enroll"
	"github.com/f3rmion/fyenroll/session"
)

var _ = Describe("Registry", func() {
	var (
		reg  *session.Registry
		plan session.Plan
	)

	BeforeEach(func() {
		reg = session.NewRegistry()
		plan = session.Plan{Set: []int{1, 2}, NewIndex: 4, Threshold: 2, Participants: 3, Attempt: 1}
	})

	Describe("Create", func() {
		It("starts in the created state with a fresh ID", func() {
			a, err := reg.Create(plan)
			Expect(err).NotTo(HaveOccurred())
			Expect(a.State).To(Equal(session.StateCreated))
			Expect(a.ID).NotTo(BeEmpty())
			Expect(a.Plan.Set).To(Equal([]int{1, 2}))

			id, busy := reg.SessionOf(4)
			Expect(busy).To(BeTrue())
			Expect(id).To(Equal(a.ID))
		})

		It("does not alias the caller's set", func() {
			rec, err := reg.Create(plan)
			Expect(err).NotTo(HaveOccurred())
			plan.Set[0] = 9

			got, err := reg.Get(rec.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Plan.Set).To(Equal([]int{1, 2}))
		})

		It("rejects a session sharing a holder", func() {
			_, err := reg.Create(plan)
			Expect(err).NotTo(HaveOccurred())

			_, err = reg.Create(session.Plan{Set: []int{2, 3}, NewIndex: 5, Threshold: 2, Participants: 3})
			Expect(errors.Is(err, enroll.ErrSessionConflict)).To(BeTrue())
		})

		It("rejects a session enrolling the same newcomer", func() {
			_, err := reg.Create(plan)
			Expect(err).NotTo(HaveOccurred())

			_, err = reg.Create(session.Plan{Set: []int{3, 5}, NewIndex: 4, Threshold: 2, Participants: 5})
			Expect(errors.Is(err, enroll.ErrSessionConflict)).To(BeTrue())
		})

		It("allows disjoint sessions", func() {
			_, err := reg.Create(plan)
			Expect(err).NotTo(HaveOccurred())
			_, err = reg.Create(session.Plan{Set: []int{3, 5}, NewIndex: 6, Threshold: 2, Participants: 5})
			Expect(err).NotTo(HaveOccurred())
			Expect(reg.Active()).To(HaveLen(2))
		})

		It("admits exactly one of many concurrent conflicting sessions", func() {
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				ok        int
				conflicts int
			)
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := reg.Create(plan)
					mu.Lock()
					defer mu.Unlock()
					if err == nil {
						ok++
					} else if errors.Is(err, enroll.ErrSessionConflict) {
						conflicts++
					}
				}()
			}
			wg.Wait()
			Expect(ok).To(Equal(1))
			Expect(conflicts).To(Equal(15))
		})
	})

	Describe("Transition", func() {
		var id string

		BeforeEach(func() {
			rec, err := reg.Create(plan)
			Expect(err).NotTo(HaveOccurred())
			id = rec.ID
		})

		It("follows the round order to assembled", func() {
			for _, next := range []session.State{
				session.StateSplitsPending,
				session.StateAggregatesPending,
				session.StateAssembled,
			} {
				rec, err := reg.Transition(id, next)
				Expect(err).NotTo(HaveOccurred())
				Expect(rec.State).To(Equal(next))
			}
			Expect(reg.Active()).To(BeEmpty())

			_, busy := reg.SessionOf(1)
			Expect(busy).To(BeFalse())
		})

		It("rejects skipping a round", func() {
			_, err := reg.Transition(id, session.StateAggregatesPending)
			Expect(errors.Is(err, session.ErrInvalidTransition)).To(BeTrue())
		})

		It("never leaves a terminal state", func() {
			_, err := reg.Fail(id, "participant 2 unavailable")
			Expect(err).NotTo(HaveOccurred())

			_, err = reg.Transition(id, session.StateSplitsPending)
			Expect(errors.Is(err, session.ErrInvalidTransition)).To(BeTrue())
			_, err = reg.Fail(id, "again")
			Expect(errors.Is(err, session.ErrInvalidTransition)).To(BeTrue())
		})

		It("records the failure reason and frees participants", func() {
			_, err := reg.Transition(id, session.StateSplitsPending)
			Expect(err).NotTo(HaveOccurred())
			rec, err := reg.Fail(id, "timeout")
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.State).To(Equal(session.StateFailed))
			Expect(rec.Reason).To(Equal("timeout"))

			_, err = reg.Create(plan)
			Expect(err).NotTo(HaveOccurred())
		})

		It("reports unknown sessions", func() {
			_, err := reg.Transition("missing", session.StateSplitsPending)
			Expect(errors.Is(err, session.ErrSessionNotFound)).To(BeTrue())
			_, err = reg.Get("missing")
			Expect(errors.Is(err, session.ErrSessionNotFound)).To(BeTrue())
		})
	})

	Describe("Release", func() {
		It("only forgets terminal sessions", func() {
			rec, err := reg.Create(plan)
			Expect(err).NotTo(HaveOccurred())

			Expect(errors.Is(reg.Release(rec.ID), session.ErrInvalidTransition)).To(BeTrue())

			_, err = reg.Fail(rec.ID, "cancelled")
			Expect(err).NotTo(HaveOccurred())
			Expect(reg.Release(rec.ID)).To(Succeed())

			_, err = reg.Get(rec.ID)
			Expect(errors.Is(err, session.ErrSessionNotFound)).To(BeTrue())
		})
	})
})

var _ = Describe("State", func() {
	DescribeTable("Terminal",
		func(s session.State, terminal bool) {
			Expect(s.Terminal()).To(Equal(terminal))
		},
		Entry("created", session.StateCreated, false),
		Entry("splits pending", session.StateSplitsPending, false),
		Entry("aggregates pending", session.StateAggregatesPending, false),
		Entry("assembled", session.StateAssembled, true),
		Entry("failed", session.StateFailed, true),
	)
})
