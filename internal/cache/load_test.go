package cache_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/currency-exchange/internal/cache"
)

var _ = Describe("typed helpers", func() {
	var (
		ctx context.Context
		c   cache.Cache
	)

	BeforeEach(func() {
		ctx = context.Background()
		c, _ = cache.NewMemoryManager().GetCache("exchangeValue")
	})

	Describe("Load", func() {
		It("should decode a stored value into the requested type", func() {
			Expect(c.Put(ctx, "USD_INR", rate{From: "USD", To: "INR"})).To(Succeed())

			got, err := cache.Load(ctx, c, "USD_INR", func(context.Context) (*rate, error) {
				Fail("loader must not run on a hit")
				return nil, nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(&rate{From: "USD", To: "INR"}))
		})

		It("should return a nil pointer for a cached null", func() {
			first, err := cache.Load(ctx, c, "USD_XXX", func(context.Context) (*rate, error) {
				return nil, nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(first).To(BeNil())

			second, err := cache.Load(ctx, c, "USD_XXX", func(context.Context) (*rate, error) {
				Fail("null result should have been cached")
				return nil, nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(BeNil())
		})

		It("should surface the loader error", func() {
			cause := errors.New("db down")
			_, err := cache.Load(ctx, c, "USD_INR", func(context.Context) (*rate, error) {
				return nil, cause
			})
			Expect(errors.Is(err, cause)).To(BeTrue())
		})

		It("should report a decode failure", func() {
			Expect(c.Put(ctx, "USD_INR", "not an object")).To(Succeed())
			_, err := cache.Load(ctx, c, "USD_INR", func(context.Context) (rate, error) {
				return rate{}, nil
			})
			Expect(err).To(MatchError(ContainSubstring("decode")))
		})
	})

	Describe("GetAs", func() {
		It("should report a miss", func() {
			_, found, err := cache.GetAs[rate](ctx, c, "USD_INR")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeFalse())
		})

		It("should decode a hit", func() {
			Expect(c.Put(ctx, "USD_INR", rate{From: "USD", To: "INR"})).To(Succeed())
			got, found, err := cache.GetAs[rate](ctx, c, "USD_INR")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(got.To).To(Equal("INR"))
		})
	})
})
