package draft

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kharcha-app/kharcha-scan/internal/gist"
)

var _ = Describe("BoltDB", func() {
	var db *BoltDB

	BeforeEach(func() {
		var err error
		db, err = NewBoltDB(filepath.Join(GinkgoT().TempDir(), "drafts.db"))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(db.Close()).To(Succeed())
	})

	It("round-trips a draft", func() {
		draft := &Draft{
			ID: "draft-1",
			ExpenseDraft: gist.ExpenseDraft{
				Amount:     "1250.00",
				Date:       "2024-03-15",
				Merchant:   "Big Mart",
				Confidence: 0.92,
				FieldConfidence: gist.FieldConfidence{
					Amount:   gist.LevelHigh,
					Date:     gist.LevelHigh,
					Merchant: gist.LevelHigh,
				},
			},
			Engine:    "tesseract",
			Status:    StatusPending,
			CreatedAt: time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC),
		}

		Expect(db.SaveDraft(draft)).To(Succeed())

		got, err := db.GetDraft("draft-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Amount).To(Equal("1250.00"))
		Expect(got.FieldConfidence.Amount).To(Equal(gist.LevelHigh))
		Expect(got.Engine).To(Equal("tesseract"))
	})

	It("errors for a missing draft", func() {
		_, err := db.GetDraft("missing")
		Expect(err).To(MatchError(ContainSubstring("draft not found")))
	})

	Describe("ListDrafts", func() {
		BeforeEach(func() {
			base := time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)
			for _, d := range []*Draft{
				{ID: "a", Status: StatusPending, CreatedAt: base},
				{ID: "b", Status: StatusSubmitted, CreatedAt: base.Add(time.Hour)},
				{ID: "c", Status: StatusPending, CreatedAt: base.Add(2 * time.Hour)},
			} {
				Expect(db.SaveDraft(d)).To(Succeed())
			}
		})

		It("returns everything newest first for an empty status", func() {
			drafts, err := db.ListDrafts("")
			Expect(err).NotTo(HaveOccurred())
			Expect(drafts).To(HaveLen(3))
			Expect(drafts[0].ID).To(Equal("c"))
			Expect(drafts[2].ID).To(Equal("a"))
		})

		It("filters by status", func() {
			drafts, err := db.ListDrafts(StatusPending)
			Expect(err).NotTo(HaveOccurred())
			Expect(drafts).To(HaveLen(2))
			Expect(drafts[0].ID).To(Equal("c"))
			Expect(drafts[1].ID).To(Equal("a"))
		})
	})

	It("deletes a draft", func() {
		Expect(db.SaveDraft(&Draft{ID: "draft-1"})).To(Succeed())
		Expect(db.DeleteDraft("draft-1")).To(Succeed())
		_, err := db.GetDraft("draft-1")
		Expect(err).To(HaveOccurred())
	})
})
