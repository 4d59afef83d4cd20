package draft

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/kharcha-app/kharcha-scan/internal/gist"
)

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		recognizer  *mockRecognizer
		backend     *mockBackend
		service     *Service
		server      *Server
		auth        BasicAuth
		metricsStub http.Handler
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		service = NewServiceWithDeps(db, recognizer, storage, backend, nil,
			&mockIDGenerator{id: "test-id-123"},
			&mockTimeSource{now: time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)})
		server = NewServerWithMux(service, auth, metricsStub, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	}

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		recognizer = newMockRecognizer()
		backend = newMockBackend()
		auth = BasicAuth{}
		metricsStub = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("kharcha_scan_scans_total 0"))
		})
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	Describe("authentication", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "scan", Password: "secret"}
			setupServer()
		})

		It("rejects requests without credentials", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/scans")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			resp.Body.Close()
		})

		It("accepts requests with correct credentials", func() {
			req, err := http.NewRequest("GET", ghttpServer.URL()+"/api/scans", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("scan", "secret")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			resp.Body.Close()
		})

		It("leaves the metrics endpoint open", func() {
			resp, err := http.Get(ghttpServer.URL() + "/metrics")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			resp.Body.Close()
		})
	})

	Describe("handleUploadScan", func() {
		postScan := func(fieldName, filename string) *http.Response {
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			fw, err := mw.CreateFormFile(fieldName, filename)
			Expect(err).NotTo(HaveOccurred())
			_, err = fw.Write([]byte("fake image data"))
			Expect(err).NotTo(HaveOccurred())
			Expect(mw.Close()).To(Succeed())

			resp, err := http.Post(ghttpServer.URL()+"/api/scans", mw.FormDataContentType(), &buf)
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		It("creates a draft from an uploaded image", func() {
			resp := postScan("file", "receipt.jpg")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var draft Draft
			Expect(json.NewDecoder(resp.Body).Decode(&draft)).To(Succeed())
			Expect(draft.ID).To(Equal("test-id-123"))
			Expect(draft.Amount).To(Equal("1250.00"))
			Expect(draft.Merchant).To(Equal("Big Mart"))
			Expect(draft.Engine).To(Equal("tesseract"))
			Expect(draft.Status).To(Equal(StatusPending))
		})

		It("rejects an upload larger than the size cap", func() {
			origMax := maxUploadBytes
			maxUploadBytes = 1 << 10
			defer func() { maxUploadBytes = origMax }()

			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			fw, err := mw.CreateFormFile("file", "huge.jpg")
			Expect(err).NotTo(HaveOccurred())
			_, err = fw.Write(bytes.Repeat([]byte("x"), 4<<10))
			Expect(err).NotTo(HaveOccurred())
			Expect(mw.Close()).To(Succeed())

			resp, err := http.Post(ghttpServer.URL()+"/api/scans", mw.FormDataContentType(), &buf)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("too large"))
			Expect(db.drafts).To(BeEmpty())
		})

		It("rejects a form without a file part", func() {
			resp := postScan("wrong", "receipt.jpg")
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("error"))
		})
	})

	Describe("handleListDrafts", func() {
		BeforeEach(func() {
			db.drafts["a"] = &Draft{ID: "a", Status: StatusPending}
			db.drafts["b"] = &Draft{ID: "b", Status: StatusSubmitted}
		})

		It("returns all drafts", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/scans")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var drafts []*Draft
			Expect(json.NewDecoder(resp.Body).Decode(&drafts)).To(Succeed())
			Expect(drafts).To(HaveLen(2))
		})

		It("filters by status", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/scans?status=pending")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			var drafts []*Draft
			Expect(json.NewDecoder(resp.Body).Decode(&drafts)).To(Succeed())
			Expect(drafts).To(HaveLen(1))
			Expect(drafts[0].ID).To(Equal("a"))
		})

		It("returns an empty array when nothing matches", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/scans?status=discarded")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(strings.TrimSpace(string(body))).To(Equal("[]"))
		})
	})

	Describe("handleGetDraft", func() {
		It("returns the draft", func() {
			db.drafts["a"] = &Draft{ID: "a", Status: StatusPending}

			resp, err := http.Get(ghttpServer.URL() + "/api/scans/a")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var draft Draft
			Expect(json.NewDecoder(resp.Body).Decode(&draft)).To(Succeed())
			Expect(draft.ID).To(Equal("a"))
		})

		It("returns 404 for an unknown draft", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/scans/missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			resp.Body.Close()
		})
	})

	Describe("handleGetScanImage", func() {
		It("serves the stored image", func() {
			db.drafts["a"] = &Draft{ID: "a", Filename: "a_scan.jpg", ContentType: "image/jpeg"}
			storage.files["a_scan.jpg"] = []byte("fake image data")

			resp, err := http.Get(ghttpServer.URL() + "/api/scans/a/image")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("image/jpeg"))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(Equal([]byte("fake image data")))
		})
	})

	Describe("handleDiscardDraft", func() {
		It("removes the draft", func() {
			db.drafts["a"] = &Draft{ID: "a", Filename: "a_scan.jpg"}
			storage.files["a_scan.jpg"] = []byte("fake image data")

			req, err := http.NewRequest("DELETE", ghttpServer.URL()+"/api/scans/a", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			resp.Body.Close()
			Expect(db.drafts).NotTo(HaveKey("a"))
		})
	})

	Describe("handleSubmitDraft", func() {
		BeforeEach(func() {
			db.drafts["a"] = &Draft{
				ID: "a",
				ExpenseDraft: gist.ExpenseDraft{
					Amount:   "1250.00",
					Date:     "2024-03-15",
					Merchant: "Big Mart",
				},
				Filename:    "a_scan.jpg",
				ContentType: "image/jpeg",
				Status:      StatusPending,
			}
			storage.files["a_scan.jpg"] = []byte("fake image data")
		})

		It("submits with reviewer corrections", func() {
			body := strings.NewReader(`{"amount":"1300.50","category_id":"7"}`)
			resp, err := http.Post(ghttpServer.URL()+"/api/scans/a/submit", "application/json", body)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var draft Draft
			Expect(json.NewDecoder(resp.Body).Decode(&draft)).To(Succeed())
			Expect(draft.Status).To(Equal(StatusSubmitted))
			Expect(draft.ExpenseID).To(Equal(int64(42)))
			Expect(backend.submission.Amount).To(Equal("1300.50"))
			Expect(backend.submission.CategoryID).To(Equal("7"))
		})

		It("submits with an empty body using the extracted fields", func() {
			resp, err := http.Post(ghttpServer.URL()+"/api/scans/a/submit", "application/json", nil)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(backend.submission.Amount).To(Equal("1250.00"))
		})

		It("rejects an invalid amount", func() {
			body := strings.NewReader(`{"amount":"abc"}`)
			resp, err := http.Post(ghttpServer.URL()+"/api/scans/a/submit", "application/json", body)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			resp.Body.Close()
		})
	})

	Describe("handleExtract", func() {
		It("extracts fields from posted text without creating a draft", func() {
			body := strings.NewReader(`{"lines":["Corner Shop","Total: 150"]}`)
			resp, err := http.Post(ghttpServer.URL()+"/api/extract", "application/json", body)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out gist.ExpenseDraft
			Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
			Expect(out.Amount).To(Equal("150.00"))
			Expect(out.Merchant).To(Equal("Corner Shop"))
			Expect(db.drafts).To(BeEmpty())
		})

		It("rejects a malformed body", func() {
			resp, err := http.Post(ghttpServer.URL()+"/api/extract", "application/json", strings.NewReader("{"))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			resp.Body.Close()
		})
	})

	Describe("CORS", func() {
		It("answers preflight requests through Start's middleware", func() {
			// ServeHTTP skips the CORS wrapper, so exercise the
			// middleware directly
			handler := server.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {})
			req, err := http.NewRequest("OPTIONS", "/api/scans", nil)
			Expect(err).NotTo(HaveOccurred())

			rec := httptest.NewRecorder()
			handler(rec, req)
			Expect(rec.Code).To(Equal(http.StatusNoContent))
			Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})
})
