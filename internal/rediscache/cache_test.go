package rediscache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"github.com/angeloszaimis/currency-exchange/internal/cache"
	"github.com/angeloszaimis/currency-exchange/internal/rediscache"
)

type exchangeValue struct {
	From string `json:"from"`
	To   string `json:"to"`
}

var _ = Describe("Redis cache", func() {
	var (
		ctx    context.Context
		server *miniredis.Miniredis
		client *redis.Client
		mgr    *rediscache.Manager
		c      cache.Cache
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		server, err = miniredis.Run()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(server.Close)

		client = rediscache.NewClient(server.Addr(), "", 0, 200*time.Millisecond)
		DeferCleanup(client.Close)

		mgr = rediscache.NewManager(client)
		c, _ = mgr.GetCache("exchangeValue")
	})

	Describe("key layout", func() {
		It("should store under prefix, cache name and key with the TTL", func() {
			Expect(c.Put(ctx, "USD_INR", exchangeValue{From: "USD", To: "INR"})).To(Succeed())

			Expect(server.Exists("my-redis-exchangeValue::USD_INR")).To(BeTrue())
			Expect(server.TTL("my-redis-exchangeValue::USD_INR")).To(Equal(60 * time.Second))

			raw, err := server.Get("my-redis-exchangeValue::USD_INR")
			Expect(err).NotTo(HaveOccurred())
			Expect(raw).To(MatchJSON(`{"from":"USD","to":"INR"}`))
		})

		It("should honour a custom prefix", func() {
			other := rediscache.NewManager(client, rediscache.WithPrefix("rates:"))
			oc, _ := other.GetCache("fx")
			Expect(oc.Put(ctx, "k", 1)).To(Succeed())
			Expect(server.Exists("rates:fx::k")).To(BeTrue())
		})
	})

	Describe("Get", func() {
		It("should report a miss as nil without error", func() {
			w, err := c.Get(ctx, "USD_INR")
			Expect(err).NotTo(HaveOccurred())
			Expect(w).To(BeNil())
		})

		It("should re-arm the TTL on read", func() {
			Expect(c.Put(ctx, "USD_INR", "10.5")).To(Succeed())
			server.FastForward(45 * time.Second)

			Expect(c.Get(ctx, "USD_INR")).NotTo(BeNil())
			Expect(server.TTL("my-redis-exchangeValue::USD_INR")).To(Equal(60 * time.Second))
		})

		It("should leave the TTL alone without time-to-idle", func() {
			fixed := rediscache.NewManager(client, rediscache.WithTimeToIdle(false))
			fc, _ := fixed.GetCache("exchangeValue")
			Expect(fc.Put(ctx, "USD_INR", "10.5")).To(Succeed())
			server.FastForward(45 * time.Second)

			Expect(fc.Get(ctx, "USD_INR")).NotTo(BeNil())
			Expect(server.TTL("my-redis-exchangeValue::USD_INR")).To(Equal(15 * time.Second))
		})

		It("should expire entries", func() {
			Expect(c.Put(ctx, "USD_INR", "10.5")).To(Succeed())
			server.FastForward(61 * time.Second)
			Expect(c.Get(ctx, "USD_INR")).To(BeNil())
		})

		It("should decode typed reads", func() {
			Expect(c.Put(ctx, "USD_INR", exchangeValue{From: "USD", To: "INR"})).To(Succeed())

			got, found, err := cache.GetAs[exchangeValue](ctx, c, "USD_INR")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(got.To).To(Equal("INR"))
		})
	})

	Describe("GetOrLoad", func() {
		It("should load and store on miss, then serve from Redis", func() {
			var calls atomic.Int32
			loader := func(context.Context) (any, error) {
				calls.Add(1)
				return exchangeValue{From: "USD", To: "INR"}, nil
			}

			for i := 0; i < 3; i++ {
				w, err := c.GetOrLoad(ctx, "USD_INR", loader)
				Expect(err).NotTo(HaveOccurred())
				Expect(w).NotTo(BeNil())
			}
			Expect(calls.Load()).To(Equal(int32(1)))
			Expect(server.Exists("my-redis-exchangeValue::USD_INR")).To(BeTrue())
		})

		It("should collapse concurrent misses into one load", func() {
			var calls atomic.Int32
			release := make(chan struct{})
			loader := func(context.Context) (any, error) {
				calls.Add(1)
				<-release
				return "10.5", nil
			}

			var wg sync.WaitGroup
			for i := 0; i < 5; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, err := c.GetOrLoad(ctx, "USD_INR", loader)
					Expect(err).NotTo(HaveOccurred())
				}()
			}

			Eventually(calls.Load).Should(Equal(int32(1)))
			close(release)
			wg.Wait()
			Expect(calls.Load()).To(Equal(int32(1)))
		})

		It("should finish the shared load when the caller that started it goes away", func() {
			callerCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			w, err := c.GetOrLoad(callerCtx, "USD_INR", func(loadCtx context.Context) (any, error) {
				cancel()
				Expect(loadCtx.Err()).NotTo(HaveOccurred())
				return exchangeValue{From: "USD", To: "INR"}, nil
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(w).NotTo(BeNil())
			Expect(server.Exists("my-redis-exchangeValue::USD_INR")).To(BeTrue())
		})

		It("should wrap loader failures and store nothing", func() {
			cause := errors.New("db down")
			_, err := c.GetOrLoad(ctx, "USD_INR", func(context.Context) (any, error) {
				return nil, cause
			})

			var vre *cache.ValueRetrievalError
			Expect(errors.As(err, &vre)).To(BeTrue())
			Expect(vre.Key).To(Equal("USD_INR"))
			Expect(errors.Is(err, cause)).To(BeTrue())
			Expect(server.Exists("my-redis-exchangeValue::USD_INR")).To(BeFalse())
		})

		It("should report a store failure as a plain error", func() {
			server.SetError("LOADING Redis is loading the dataset in memory")
			_, err := c.GetOrLoad(ctx, "USD_INR", func(context.Context) (any, error) {
				Fail("loader must not run when the store fails")
				return nil, nil
			})
			Expect(err).To(HaveOccurred())
			Expect(cache.IsValueRetrieval(err)).To(BeFalse())
		})
	})

	Describe("PutIfAbsent", func() {
		It("should keep the first value", func() {
			prev, err := c.PutIfAbsent(ctx, "USD_INR", "10.5")
			Expect(err).NotTo(HaveOccurred())
			Expect(prev).To(BeNil())

			prev, err = c.PutIfAbsent(ctx, "USD_INR", "11")
			Expect(err).NotTo(HaveOccurred())
			Expect(prev).NotTo(BeNil())

			var got string
			Expect(prev.Decode(&got)).To(Succeed())
			Expect(got).To(Equal("10.5"))
		})
	})

	Describe("Evict and Clear", func() {
		It("should evict a single key idempotently", func() {
			Expect(c.Put(ctx, "USD_INR", "10.5")).To(Succeed())
			Expect(c.Evict(ctx, "USD_INR")).To(Succeed())
			Expect(c.Evict(ctx, "USD_INR")).To(Succeed())
			Expect(server.Exists("my-redis-exchangeValue::USD_INR")).To(BeFalse())
		})

		It("should clear only its own keys", func() {
			other, _ := mgr.GetCache("other")
			for _, k := range []string{"a", "b", "c"} {
				Expect(c.Put(ctx, k, k)).To(Succeed())
			}
			Expect(other.Put(ctx, "a", "a")).To(Succeed())

			Expect(c.Clear(ctx)).To(Succeed())
			Expect(server.Keys()).To(ConsistOf("my-redis-other::a"))
		})
	})

	Describe("NativeCache", func() {
		It("should expose the client", func() {
			Expect(c.NativeCache()).To(BeIdenticalTo(mgr.Client()))
		})
	})

	Describe("caller cancellation behind a resilient manager", func() {
		It("should not open the shared circuit while Redis is healthy", func() {
			resilient := cache.NewResilientManager(mgr)
			rc, ok := resilient.GetCache("exchangeValue")
			Expect(ok).To(BeTrue())
			Expect(rc.Put(ctx, "USD_INR", "10.5")).To(Succeed())

			canceled, cancel := context.WithCancel(ctx)
			cancel()
			w, err := rc.Get(canceled, "USD_INR")
			Expect(err).NotTo(HaveOccurred())
			Expect(w).To(BeNil())
			Expect(resilient.Breaker().IsOpen()).To(BeFalse())

			other, ok := resilient.GetCache("exchangeValue")
			Expect(ok).To(BeTrue())
			w, err = other.Get(ctx, "USD_INR")
			Expect(err).NotTo(HaveOccurred())
			Expect(w).NotTo(BeNil())
		})

		It("should still count the operation timeout as a store fault", func() {
			slow := rediscache.NewManager(client, rediscache.WithOperationTimeout(time.Nanosecond))
			resilient := cache.NewResilientManager(slow)
			rc, ok := resilient.GetCache("exchangeValue")
			Expect(ok).To(BeTrue())

			_, err := rc.Get(ctx, "USD_INR")
			Expect(err).NotTo(HaveOccurred())
			Expect(resilient.Breaker().IsOpen()).To(BeTrue())
		})
	})

	Describe("unreachable server", func() {
		It("should return errors from every store operation", func() {
			server.Close()

			_, err := c.Get(ctx, "USD_INR")
			Expect(err).To(HaveOccurred())
			Expect(c.Put(ctx, "USD_INR", "10.5")).To(HaveOccurred())
			Expect(c.Evict(ctx, "USD_INR")).To(HaveOccurred())
			Expect(c.Clear(ctx)).To(HaveOccurred())
			Expect(mgr.Ping(ctx)).To(HaveOccurred())
		})

		It("should fail open behind a resilient manager", func() {
			resilient := cache.NewResilientManager(mgr)
			rc, ok := resilient.GetCache("exchangeValue")
			Expect(ok).To(BeTrue())
			server.Close()

			w, err := rc.GetOrLoad(ctx, "USD_INR", func(context.Context) (any, error) {
				return "10.5", nil
			})
			Expect(err).NotTo(HaveOccurred())
			var got string
			Expect(w.Decode(&got)).To(Succeed())
			Expect(got).To(Equal("10.5"))
			Expect(resilient.Breaker().IsOpen()).To(BeTrue())

			names, err := resilient.CacheNames(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(BeEmpty())
		})
	})
})
