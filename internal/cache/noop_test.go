package cache_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/currency-exchange/internal/cache"
)

var _ = Describe("NoOpManager", func() {
	ctx := context.Background()

	It("should hand out a cache for any name", func() {
		c, ok := cache.NewNoOpManager().GetCache("anything")
		Expect(ok).To(BeTrue())
		Expect(c.Name()).To(Equal("anything"))
	})

	It("should store nothing", func() {
		c, _ := cache.NewNoOpManager().GetCache("exchangeValue")
		Expect(c.Put(ctx, "USD_INR", "10.5")).To(Succeed())

		w, err := c.Get(ctx, "USD_INR")
		Expect(err).NotTo(HaveOccurred())
		Expect(w).To(BeNil())

		prev, err := c.PutIfAbsent(ctx, "USD_INR", "10.5")
		Expect(err).NotTo(HaveOccurred())
		Expect(prev).To(BeNil())
	})

	It("should always run the loader", func() {
		c, _ := cache.NewNoOpManager().GetCache("exchangeValue")
		calls := 0
		loader := func(context.Context) (any, error) {
			calls++
			return "10.5", nil
		}

		for i := 0; i < 3; i++ {
			got, err := cache.Load(ctx, c, "USD_INR", func(ctx context.Context) (string, error) {
				v, err := loader(ctx)
				return v.(string), err
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal("10.5"))
		}
		Expect(calls).To(Equal(3))
	})

	It("should wrap loader failures", func() {
		c, _ := cache.NewNoOpManager().GetCache("exchangeValue")
		cause := errors.New("db down")

		_, err := c.GetOrLoad(ctx, "USD_INR", failingLoader(cause))
		Expect(cache.IsValueRetrieval(err)).To(BeTrue())
		Expect(errors.Is(err, cause)).To(BeTrue())
	})

	It("should reject a nil loader", func() {
		c, _ := cache.NewNoOpManager().GetCache("exchangeValue")
		_, err := c.GetOrLoad(ctx, "USD_INR", nil)
		Expect(err).To(MatchError(cache.ErrNilLoader))
	})
})
