package cache

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Key", func() {
	It("is stable for the same bytes", func() {
		Expect(Key("extract", []byte("abc"))).To(Equal(Key("extract", []byte("abc"))))
	})

	It("differs by namespace and content", func() {
		Expect(Key("extract", []byte("abc"))).NotTo(Equal(Key("other", []byte("abc"))))
		Expect(Key("extract", []byte("abc"))).NotTo(Equal(Key("extract", []byte("abd"))))
	})
})

var _ = Describe("Memory", func() {
	var c *Memory

	BeforeEach(func() {
		c = NewMemory(time.Hour, time.Minute)
	})

	It("returns stored values", func() {
		Expect(c.Set("k", []byte("v"), 0)).To(Succeed())
		val, ok := c.Get("k")
		Expect(ok).To(BeTrue())
		Expect(val).To(Equal([]byte("v")))
	})

	It("forgets deleted values", func() {
		Expect(c.Set("k", []byte("v"), 0)).To(Succeed())
		Expect(c.Delete("k")).To(Succeed())
		_, ok := c.Get("k")
		Expect(ok).To(BeFalse())
	})

	It("expires entries after their ttl", func() {
		Expect(c.Set("k", []byte("v"), time.Millisecond)).To(Succeed())
		Eventually(func() bool {
			_, ok := c.Get("k")
			return ok
		}).Should(BeFalse())
	})
})

var _ = Describe("Bolt", func() {
	var (
		db  *Bolt
		now time.Time
	)

	BeforeEach(func() {
		var err error
		db, err = NewBolt(filepath.Join(GinkgoT().TempDir(), "cache.db"), time.Hour)
		Expect(err).NotTo(HaveOccurred())

		now = time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)
		db.now = func() time.Time { return now }
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	It("round-trips values", func() {
		Expect(db.Set("k", []byte("hello"), 0)).To(Succeed())
		val, ok := db.Get("k")
		Expect(ok).To(BeTrue())
		Expect(val).To(Equal([]byte("hello")))
	})

	It("misses unknown keys", func() {
		_, ok := db.Get("missing")
		Expect(ok).To(BeFalse())
	})

	It("drops entries past the default ttl", func() {
		Expect(db.Set("k", []byte("hello"), 0)).To(Succeed())
		now = now.Add(2 * time.Hour)

		_, ok := db.Get("k")
		Expect(ok).To(BeFalse())

		now = now.Add(-2 * time.Hour)
		_, ok = db.Get("k")
		Expect(ok).To(BeFalse(), "expired entry should have been deleted")
	})

	It("keeps entries forever when the default ttl is negative", func() {
		db.defaultTTL = -1
		Expect(db.Set("k", []byte("hello"), 0)).To(Succeed())
		now = now.Add(24 * 365 * time.Hour)

		_, ok := db.Get("k")
		Expect(ok).To(BeTrue())
	})

	It("deletes entries", func() {
		Expect(db.Set("k", []byte("hello"), 0)).To(Succeed())
		Expect(db.Delete("k")).To(Succeed())
		_, ok := db.Get("k")
		Expect(ok).To(BeFalse())
	})

	When("the file is already locked", func() {
		It("returns an error", func() {
			path := filepath.Join(GinkgoT().TempDir(), "locked.db")
			first, err := NewBolt(path, time.Hour)
			Expect(err).NotTo(HaveOccurred())
			defer first.Close()

			_, err = NewBolt(path, time.Hour)
			Expect(err).To(MatchError(ContainSubstring("opening boltdb")))
		})
	})
})

var _ = Describe("Layered", func() {
	var (
		fast, slow *Memory
		c          *Layered
	)

	BeforeEach(func() {
		fast = NewMemory(time.Hour, time.Minute)
		slow = NewMemory(time.Hour, time.Minute)
		c = NewLayered(fast, slow)
	})

	It("writes through to both layers", func() {
		Expect(c.Set("k", []byte("v"), 0)).To(Succeed())
		_, inFast := fast.Get("k")
		_, inSlow := slow.Get("k")
		Expect(inFast).To(BeTrue())
		Expect(inSlow).To(BeTrue())
	})

	It("promotes slow hits into the fast layer", func() {
		Expect(slow.Set("k", []byte("v"), 0)).To(Succeed())

		val, ok := c.Get("k")
		Expect(ok).To(BeTrue())
		Expect(val).To(Equal([]byte("v")))

		_, inFast := fast.Get("k")
		Expect(inFast).To(BeTrue())
	})

	It("deletes from both layers", func() {
		Expect(c.Set("k", []byte("v"), 0)).To(Succeed())
		Expect(c.Delete("k")).To(Succeed())
		_, ok := c.Get("k")
		Expect(ok).To(BeFalse())
	})
})
