package store_test

import (
	"context"
	"fmt"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tonearmlabs/tonearm/pkg/store"
	"github.com/tonearmlabs/tonearm/pkg/tensor"
	testutils "github.com/tonearmlabs/tonearm/pkg/utils/test"
)

const testDim = 8

func mustEmbedding(rows [][]float32) *tensor.Embedding {
	emb, err := tensor.FromRows(rows)
	Expect(err).NotTo(HaveOccurred())
	return emb
}

// constEmbedding builds a segments x testDim embedding where every value of
// segment s is base+s.
func constEmbedding(segments int, base float32) *tensor.Embedding {
	rows := make([][]float32, segments)
	for s := range rows {
		row := make([]float32, testDim)
		for j := range row {
			row[j] = base + float32(s)
		}
		rows[s] = row
	}
	return mustEmbedding(rows)
}

var _ = Describe("Store", func() {
	var (
		ctx      context.Context
		st       *store.Store
		embedder *testutils.MockEmbedder
	)

	BeforeEach(func() {
		ctx = context.Background()
		embedder = testutils.NewMockEmbedder(testDim)

		var err error
		st, err = store.New(store.Config{
			Directory: GinkgoT().TempDir(),
			Embedder:  embedder,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Open(ctx)).To(Succeed())
	})

	AfterEach(func() {
		Expect(st.Close()).To(Succeed())
	})

	Describe("New", func() {
		It("should reject an empty directory", func() {
			_, err := store.New(store.Config{})
			Expect(err).To(HaveOccurred())
		})

		It("should reject an unknown metric", func() {
			_, err := store.New(store.Config{
				Directory: GinkgoT().TempDir(),
				Metric:    "chebyshev",
				Embedder:  embedder,
			})
			Expect(err).To(MatchError(store.ErrUnknownMetric))
		})

		It("should reject an unknown provider", func() {
			_, err := store.New(store.Config{
				Directory: GinkgoT().TempDir(),
				Provider:  "clap",
			})
			Expect(err).To(HaveOccurred())
		})

		It("should default to cosine and vggish", func() {
			s, err := store.New(store.Config{
				Directory: GinkgoT().TempDir(),
				Embedder:  embedder,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Metric()).To(Equal(store.MetricCosine))
			Expect(s.Provider()).To(Equal("vggish"))
		})
	})

	Describe("AddEmbedding", func() {
		It("should compute, store and index an item", func() {
			Expect(st.AddEmbedding(ctx, 1, "a.wav", false)).To(Succeed())
			Expect(embedder.Calls).To(Equal(1))

			emb, err := st.GetEmbedding(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(emb.Dim()).To(Equal(testDim))
			Expect(emb.Segments()).To(Equal(2))

			stats, err := st.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Items).To(Equal(int64(1)))
			Expect(stats.Vectors[store.RoleAverage]).To(Equal(int64(1)))
			Expect(stats.Vectors[store.RoleSegment]).To(Equal(int64(2)))
		})

		It("should be a no-op for an item already in the ledger", func() {
			Expect(st.AddEmbedding(ctx, 1, "a.wav", false)).To(Succeed())
			Expect(st.AddEmbedding(ctx, 1, "a.wav", false)).To(Succeed())
			Expect(embedder.Calls).To(Equal(1))

			stats, err := st.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Vectors[store.RoleSegment]).To(Equal(int64(2)))
		})

		It("should re-embed and replace vectors when forced", func() {
			embedder.Embeddings["a.wav"] = constEmbedding(3, 1)
			Expect(st.AddEmbedding(ctx, 1, "a.wav", false)).To(Succeed())

			embedder.Embeddings["a.wav"] = constEmbedding(2, 5)
			Expect(st.AddEmbedding(ctx, 1, "a.wav", true)).To(Succeed())
			Expect(embedder.Calls).To(Equal(2))

			emb, err := st.GetEmbedding(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(emb.Segments()).To(Equal(2))
			Expect(emb.Row(0)[0]).To(Equal(float32(5)))

			// Stale vectors are gone, not orphaned.
			stats, err := st.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Items).To(Equal(int64(1)))
			Expect(stats.Vectors[store.RoleAverage]).To(Equal(int64(1)))
			Expect(stats.Vectors[store.RoleSegment]).To(Equal(int64(2)))
		})

		It("should hand out fresh slot ids after a forced replace", func() {
			embedder.Embeddings["a.wav"] = constEmbedding(2, 1)
			Expect(st.AddEmbedding(ctx, 1, "a.wav", false)).To(Succeed())

			before, err := st.Scheme().Segment().ItemSlots(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(before).To(Equal([]int64{0, 1}))

			Expect(st.AddEmbedding(ctx, 1, "a.wav", true)).To(Succeed())
			after, err := st.Scheme().Segment().ItemSlots(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(after).To(Equal([]int64{2, 3}))
		})

		It("should not reuse slots freed by replacing the highest-slotted item", func() {
			Expect(st.AddEmbeddingTensor(ctx, 1, constEmbedding(2, 1), false)).To(Succeed())
			Expect(st.AddEmbeddingTensor(ctx, 2, constEmbedding(2, 2), false)).To(Succeed())

			segment := st.Scheme().Segment()
			before, err := segment.ItemSlots(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(before).To(Equal([]int64{2, 3}))

			Expect(st.AddEmbeddingTensor(ctx, 2, constEmbedding(2, 5), true)).To(Succeed())
			after, err := segment.ItemSlots(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(after).To(Equal([]int64{4, 5}))

			// Item 1 is untouched.
			slots1, err := segment.ItemSlots(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(slots1).To(Equal([]int64{0, 1}))
		})

		It("should propagate embedding failures and store nothing", func() {
			embedder.FailOn = "broken.wav"
			err := st.AddEmbedding(ctx, 1, "broken.wav", false)
			Expect(err).To(HaveOccurred())

			_, err = st.GetEmbedding(ctx, 1)
			Expect(err).To(MatchError(store.ErrNotFound))
		})

		It("should reject embeddings of the wrong dimensionality", func() {
			err := st.AddEmbeddingTensor(ctx, 1, constEmbedding(1, 1), false)
			Expect(err).NotTo(HaveOccurred())

			wrong := mustEmbedding([][]float32{{1, 2, 3}})
			err = st.AddEmbeddingTensor(ctx, 2, wrong, false)
			Expect(err).To(MatchError(store.ErrDimensionMismatch))
		})
	})

	Describe("ingest events", func() {
		var publisher *testutils.MockPublisher

		BeforeEach(func() {
			// Swap the outer store for one with a recording publisher.
			Expect(st.Close()).To(Succeed())
			publisher = testutils.NewMockPublisher()

			var err error
			st, err = store.New(store.Config{
				Directory: GinkgoT().TempDir(),
				Embedder:  embedder,
				Publisher: publisher,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Open(ctx)).To(Succeed())
		})

		It("should publish one event per successful ingestion", func() {
			Expect(st.AddEmbedding(ctx, 1, "a.wav", false)).To(Succeed())
			Expect(st.AddEmbedding(ctx, 2, "b.wav", false)).To(Succeed())

			Expect(publisher.Events).To(HaveLen(2))
			event := publisher.Events[0]
			Expect(event.EventType).To(Equal("tonearm.item.ingested"))
			Expect(event.EventID).NotTo(BeEmpty())
			Expect(event.ItemID).To(Equal(int64(1)))
			Expect(event.Source).To(Equal("a.wav"))
			Expect(event.Segments).To(Equal(2))
			Expect(event.Forced).To(BeFalse())
		})

		It("should not publish for an idempotent no-op", func() {
			Expect(st.AddEmbedding(ctx, 1, "a.wav", false)).To(Succeed())
			Expect(st.AddEmbedding(ctx, 1, "a.wav", false)).To(Succeed())
			Expect(publisher.Events).To(HaveLen(1))
		})

		It("should mark forced re-ingestion events", func() {
			Expect(st.AddEmbedding(ctx, 1, "a.wav", false)).To(Succeed())
			Expect(st.AddEmbedding(ctx, 1, "a.wav", true)).To(Succeed())

			Expect(publisher.Events).To(HaveLen(2))
			Expect(publisher.Events[1].Forced).To(BeTrue())
		})

		It("should not publish when the embedding fails", func() {
			embedder.FailOn = "broken.wav"
			Expect(st.AddEmbedding(ctx, 1, "broken.wav", false)).To(HaveOccurred())
			Expect(publisher.Events).To(BeEmpty())
		})

		It("should keep the item durable when publishing fails", func() {
			publisher.FailWith = fmt.Errorf("broker unreachable")

			Expect(st.AddEmbedding(ctx, 1, "a.wav", false)).To(Succeed())
			Expect(publisher.Events).To(HaveLen(1))

			emb, err := st.GetEmbedding(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(emb.Segments()).To(Equal(2))
		})
	})

	Describe("GetEmbedding", func() {
		It("should return ErrNotFound for unknown items", func() {
			_, err := st.GetEmbedding(ctx, 42)
			Expect(err).To(MatchError(store.ErrNotFound))
		})

		It("should round-trip stored values exactly", func() {
			want := mustEmbedding([][]float32{
				{0.25, -1.5, 3.75, 0, 1e-7, 42, -0.001, 8},
				{1, 2, 3, 4, 5, 6, 7, 8},
			})
			Expect(st.AddEmbeddingTensor(ctx, 7, want, false)).To(Succeed())

			got, err := st.GetEmbedding(ctx, 7)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Segments()).To(Equal(2))
			for s := 0; s < 2; s++ {
				Expect(got.Row(s)).To(Equal(want.Row(s)))
			}
		})
	})

	Describe("GetManyEmbeddings", func() {
		It("should preserve input order with nil for absent items", func() {
			Expect(st.AddEmbeddingTensor(ctx, 1, constEmbedding(1, 1), false)).To(Succeed())
			Expect(st.AddEmbeddingTensor(ctx, 3, constEmbedding(1, 3), false)).To(Succeed())

			embs, err := st.GetManyEmbeddings(ctx, []int64{3, 2, 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(embs).To(HaveLen(3))
			Expect(embs[0]).NotTo(BeNil())
			Expect(embs[1]).To(BeNil())
			Expect(embs[2]).NotTo(BeNil())
			Expect(embs[0].Row(0)[0]).To(Equal(float32(3)))
		})
	})

	Describe("before Open", func() {
		It("should refuse operations", func() {
			s, err := store.New(store.Config{
				Directory: GinkgoT().TempDir(),
				Embedder:  embedder,
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(s.AddEmbedding(ctx, 1, "a.wav", false)).To(MatchError(store.ErrNotOpen))
			_, err = s.GetEmbedding(ctx, 1)
			Expect(err).To(MatchError(store.ErrNotOpen))
			_, err = s.Stats(ctx)
			Expect(err).To(MatchError(store.ErrNotOpen))
		})
	})

	Describe("reopening", func() {
		It("should find previously ingested items", func() {
			dir := st.Directory()
			Expect(st.AddEmbeddingTensor(ctx, 9, constEmbedding(2, 1), false)).To(Succeed())
			Expect(st.Close()).To(Succeed())

			again, err := store.New(store.Config{Directory: dir, Embedder: embedder})
			Expect(err).NotTo(HaveOccurred())
			Expect(again.Open(ctx)).To(Succeed())
			defer again.Close()

			stats, err := again.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Items).To(Equal(int64(1)))
			Expect(stats.Vectors[store.RoleSegment]).To(Equal(int64(2)))

			// AfterEach closes st again; Close is idempotent.
		})
	})
})

var _ = Describe("Index", func() {
	var (
		ctx context.Context
		st  *store.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		st, err = store.New(store.Config{
			Directory: GinkgoT().TempDir(),
			Embedder:  testutils.NewMockEmbedder(testDim),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Open(ctx)).To(Succeed())
	})

	AfterEach(func() {
		Expect(st.Close()).To(Succeed())
	})

	Describe("Vectorize", func() {
		It("should pool the average role to one unit vector", func() {
			emb := mustEmbedding([][]float32{
				{2, 0, 0, 0, 0, 0, 0, 0},
				{4, 0, 0, 0, 0, 0, 0, 0},
			})
			vectors, err := st.Scheme().Average().Vectorize(emb)
			Expect(err).NotTo(HaveOccurred())
			Expect(vectors).To(HaveLen(1))

			var sum float64
			for _, f := range vectors[0] {
				sum += float64(f) * float64(f)
			}
			Expect(math.Sqrt(sum)).To(BeNumerically("~", 1.0, 1e-6))
			Expect(vectors[0][0]).To(BeNumerically("~", 1.0, 1e-6))
		})

		It("should keep one vector per segment for the segment role", func() {
			emb := constEmbedding(3, 1)
			vectors, err := st.Scheme().Segment().Vectorize(emb)
			Expect(err).NotTo(HaveOccurred())
			Expect(vectors).To(HaveLen(3))
		})

		It("should not mutate the input embedding", func() {
			emb := mustEmbedding([][]float32{{3, 4, 0, 0, 0, 0, 0, 0}})
			_, err := st.Scheme().Segment().Vectorize(emb)
			Expect(err).NotTo(HaveOccurred())
			Expect(emb.Row(0)[0]).To(Equal(float32(3)))
		})

		It("should reject a mismatched dimensionality", func() {
			emb := mustEmbedding([][]float32{{1, 2}})
			_, err := st.Scheme().Average().Vectorize(emb)
			Expect(err).To(MatchError(store.ErrDimensionMismatch))
		})
	})

	Describe("Query", func() {
		It("should return nothing from an empty index", func() {
			matches, err := st.Scheme().Average().Query(ctx, make([]float32, testDim), 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(BeEmpty())
		})

		It("should return nothing for k <= 0", func() {
			Expect(st.AddEmbeddingTensor(ctx, 1, constEmbedding(1, 1), false)).To(Succeed())
			matches, err := st.Scheme().Average().Query(ctx, make([]float32, testDim), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(BeEmpty())
		})

		It("should clamp k to the index size", func() {
			Expect(st.AddEmbeddingTensor(ctx, 1, constEmbedding(1, 1), false)).To(Succeed())
			Expect(st.AddEmbeddingTensor(ctx, 2, constEmbedding(1, 2), false)).To(Succeed())

			query := make([]float32, testDim)
			for j := range query {
				query[j] = 1
			}
			matches, err := st.Scheme().Average().Query(ctx, query, 50)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(2))
		})

		It("should order matches nearest first", func() {
			near := mustEmbedding([][]float32{{1, 0, 0, 0, 0, 0, 0, 0}})
			far := mustEmbedding([][]float32{{0, 1, 0, 0, 0, 0, 0, 0}})
			Expect(st.AddEmbeddingTensor(ctx, 1, near, false)).To(Succeed())
			Expect(st.AddEmbeddingTensor(ctx, 2, far, false)).To(Succeed())

			query := []float32{1, 0.1, 0, 0, 0, 0, 0, 0}
			matches, err := st.Scheme().Average().Query(ctx, query, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(2))
			Expect(matches[0].Distance).To(BeNumerically("<=", matches[1].Distance))

			ids, err := st.Scheme().Average().Resolve(ctx, []int64{matches[0].Slot})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(Equal([]int64{1}))
		})

		It("should reject a query vector of the wrong length", func() {
			_, err := st.Scheme().Average().Query(ctx, []float32{1, 2}, 5)
			Expect(err).To(MatchError(store.ErrDimensionMismatch))
		})
	})

	Describe("ItemSlots", func() {
		It("should assign contiguous slots in segment order", func() {
			Expect(st.AddEmbeddingTensor(ctx, 1, constEmbedding(3, 1), false)).To(Succeed())
			Expect(st.AddEmbeddingTensor(ctx, 2, constEmbedding(2, 2), false)).To(Succeed())

			segment := st.Scheme().Segment()
			slots1, err := segment.ItemSlots(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(slots1).To(Equal([]int64{0, 1, 2}))

			slots2, err := segment.ItemSlots(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(slots2).To(Equal([]int64{3, 4}))
		})
	})
})

var _ = Describe("ParseMetric", func() {
	It("should accept cosine and l2", func() {
		m, err := store.ParseMetric("cosine")
		Expect(err).NotTo(HaveOccurred())
		Expect(m).To(Equal(store.MetricCosine))

		m, err = store.ParseMetric("l2")
		Expect(err).NotTo(HaveOccurred())
		Expect(m).To(Equal(store.MetricL2))
	})

	It("should reject anything else", func() {
		_, err := store.ParseMetric("dot")
		Expect(err).To(MatchError(store.ErrUnknownMetric))
	})
})

var _ = Describe("L2 metric", func() {
	It("should index and query without normalization", func() {
		ctx := context.Background()
		st, err := store.New(store.Config{
			Directory: GinkgoT().TempDir(),
			Metric:    "l2",
			Embedder:  testutils.NewMockEmbedder(testDim),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Open(ctx)).To(Succeed())
		defer st.Close()

		emb := mustEmbedding([][]float32{{3, 4, 0, 0, 0, 0, 0, 0}})
		vectors, err := st.Scheme().Average().Vectorize(emb)
		Expect(err).NotTo(HaveOccurred())
		Expect(vectors[0][0]).To(Equal(float32(3)))

		Expect(st.AddEmbeddingTensor(ctx, 1, emb, false)).To(Succeed())
		matches, err := st.Scheme().Average().Query(ctx, vectors[0], 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(matches).To(HaveLen(1))
		Expect(matches[0].Distance).To(BeNumerically("~", 0.0, 1e-5))
	})
})
