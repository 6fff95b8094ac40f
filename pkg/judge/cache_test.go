package judge_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"github.com/mcpsentinel/sentinel-core/pkg/judge"
)

func TestJudgeCache(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Judge RedisCache Suite")
}

var _ = Describe("RedisCache", func() {
	var (
		ctx         context.Context
		redisServer *miniredis.Miniredis
		redisClient *redis.Client
		cache       *judge.RedisCache
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		redisServer, err = miniredis.Run()
		Expect(err).NotTo(HaveOccurred())

		redisClient = redis.NewClient(&redis.Options{Addr: redisServer.Addr()})
		cache = judge.NewRedisCache(redisClient)
	})

	AfterEach(func() {
		redisServer.Close()
	})

	It("reports a miss for a key never set", func() {
		_, found, err := cache.Get(ctx, "never-set")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeFalse())
	})

	It("round-trips a result and marks it as a cache hit on read", func() {
		result := judge.Result{
			Classification:    judge.VerdictUnauthorized,
			Confidence:        95,
			Reasoning:         "unknown endpoint binary",
			ScoreContribution: judge.ScoreFor(judge.VerdictUnauthorized),
		}

		Expect(cache.Set(ctx, "cid-1", result, time.Hour)).To(Succeed())

		got, found, err := cache.Get(ctx, "cid-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
		Expect(got.CacheHit).To(BeTrue())
		Expect(got.Classification).To(Equal(judge.VerdictUnauthorized))
		Expect(got.Confidence).To(Equal(95))
		Expect(got.ScoreContribution).To(Equal(judge.ScoreFor(judge.VerdictUnauthorized)))
	})

	It("expires an entry past its TTL", func() {
		result := judge.Result{Classification: judge.VerdictAuthorized}
		Expect(cache.Set(ctx, "cid-ttl", result, time.Second)).To(Succeed())

		redisServer.FastForward(2 * time.Second)

		_, found, err := cache.Get(ctx, "cid-ttl")
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeFalse())
	})
})
