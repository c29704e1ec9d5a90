package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/superclaims/internal/claim"
	"github.com/zombor/superclaims/internal/extraction"
	"github.com/zombor/superclaims/internal/metrics"
)

type mockProcessor struct {
	result   *claim.Result
	err      error
	received []extraction.RawDocument
	calls    int
}

func (m *mockProcessor) ProcessClaim(ctx context.Context, files []extraction.RawDocument) (*claim.Result, error) {
	m.calls++
	m.received = files
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type upload struct {
	field       string
	filename    string
	contentType string
	data        string
}

func multipartBody(uploads ...upload) (*bytes.Buffer, string) {
	var b bytes.Buffer
	writer := multipart.NewWriter(&b)
	for _, u := range uploads {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, u.field, u.filename))
		if u.contentType != "" {
			h.Set("Content-Type", u.contentType)
		}
		part, err := writer.CreatePart(h)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write([]byte(u.data))
		Expect(err).NotTo(HaveOccurred())
	}
	Expect(writer.Close()).To(Succeed())
	return &b, writer.FormDataContentType()
}

func decodeBody(resp *http.Response) map[string]any {
	defer resp.Body.Close()
	var body map[string]any
	Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
	return body
}

var _ = Describe("Server", func() {
	var (
		processor   *mockProcessor
		cfg         Config
		pipeline    *metrics.Pipeline
		server      *Server
		ghttpServer *ghttp.Server
	)

	BeforeEach(func() {
		amount := 12500.0
		processor = &mockProcessor{
			result: &claim.Result{
				ClaimID:   "claim-42",
				Documents: []claim.Document{claim.Bill{TotalAmount: &amount}},
				Validation: claim.Validation{
					MissingDocuments: []claim.Category{claim.CategoryDischargeSummary, claim.CategoryIDCard},
					Discrepancies:    []string{},
				},
				ClaimDecision: claim.Decision{Status: claim.StatusPending, Reason: "Missing documents"},
			},
		}
		cfg = Config{MaxFiles: 3, MaxUploadBytes: 1 << 20}
		pipeline = metrics.New("superclaims-backend")
	})

	JustBeforeEach(func() {
		server = NewServerWithMux(processor, cfg, pipeline, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	Describe("handleRoot", func() {
		It("returns the API banner", func() {
			resp, err := http.Get(ghttpServer.URL() + "/")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
			Expect(decodeBody(resp)).To(Equal(map[string]any{"message": "Superclaims Backend API"}))
		})

		It("only matches the root path", func() {
			resp, err := http.Get(ghttpServer.URL() + "/nope")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			resp.Body.Close()
		})
	})

	Describe("handleHealth", func() {
		It("reports healthy", func() {
			resp, err := http.Get(ghttpServer.URL() + "/health")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(decodeBody(resp)).To(Equal(map[string]any{"status": "healthy", "service": "superclaims-backend"}))
		})

		It("tags the response with a request id", func() {
			resp, err := http.Get(ghttpServer.URL() + "/health")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Header.Get("X-Request-Id")).NotTo(BeEmpty())
			resp.Body.Close()
		})
	})

	Describe("CORS", func() {
		It("answers preflight requests", func() {
			req, err := http.NewRequest(http.MethodOptions, ghttpServer.URL()+"/process-claim", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Origin", "https://claims.example.com")
			req.Header.Set("Access-Control-Request-Method", "POST")
			req.Header.Set("Access-Control-Request-Headers", "content-type, x-custom")

			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("https://claims.example.com"))
			Expect(resp.Header.Get("Access-Control-Allow-Credentials")).To(Equal("true"))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(Equal("POST"))
			Expect(resp.Header.Get("Access-Control-Allow-Headers")).To(Equal("content-type, x-custom"))
			Expect(processor.calls).To(BeZero())
		})

		It("allows any origin on simple requests", func() {
			resp, err := http.Get(ghttpServer.URL() + "/health")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})

	Describe("handleProcessClaim", func() {
		post := func(body io.Reader, contentType string) *http.Response {
			resp, err := http.Post(ghttpServer.URL()+"/process-claim", contentType, body)
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		When("files are uploaded", func() {
			It("processes them in order and returns the claim", func() {
				body, contentType := multipartBody(
					upload{field: "files", filename: "bill.pdf", contentType: "application/pdf", data: "%PDF-1.4 bill"},
					upload{field: "files", filename: "card.jpg", contentType: "application/octet-stream", data: "jpeg"},
				)
				resp := post(body, contentType)

				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("X-Claim-Id")).To(Equal("claim-42"))

				raw, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(raw).To(MatchJSON(`{
					"documents": [{"type":"bill","hospital_name":null,"total_amount":12500,"date_of_service":null,"items":[]}],
					"validation": {"missing_documents": ["discharge_summary", "id_card"], "discrepancies": []},
					"claim_decision": {"status": "pending", "reason": "Missing documents"}
				}`))

				Expect(processor.received).To(HaveLen(2))
				Expect(processor.received[0].Filename).To(Equal("bill.pdf"))
				Expect(processor.received[0].ContentType).To(Equal("application/pdf"))
				Expect(string(processor.received[0].Data)).To(Equal("%PDF-1.4 bill"))
				Expect(processor.received[1].Filename).To(Equal("card.jpg"))
				Expect(processor.received[1].ContentType).To(Equal("image/jpeg"))
			})
		})

		When("the files field is missing", func() {
			It("returns 422", func() {
				body, contentType := multipartBody(upload{field: "document", filename: "bill.pdf", data: "x"})
				resp := post(body, contentType)

				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
				Expect(decodeBody(resp)).To(Equal(map[string]any{"detail": "files: field required"}))
				Expect(processor.calls).To(BeZero())
			})
		})

		When("the body is not multipart", func() {
			It("returns 422", func() {
				resp := post(strings.NewReader(`{"files": []}`), "application/json")
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
				resp.Body.Close()
			})
		})

		When("the multipart body is malformed", func() {
			It("returns 500 with the error", func() {
				resp := post(strings.NewReader("--xyz\r\nbroken"), "multipart/form-data; boundary=xyz")
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				Expect(decodeBody(resp)).To(HaveKey("detail"))
			})
		})

		When("too many files are uploaded", func() {
			It("returns 413 without processing", func() {
				body, contentType := multipartBody(
					upload{field: "files", filename: "1.pdf", data: "1"},
					upload{field: "files", filename: "2.pdf", data: "2"},
					upload{field: "files", filename: "3.pdf", data: "3"},
					upload{field: "files", filename: "4.pdf", data: "4"},
				)
				resp := post(body, contentType)

				Expect(resp.StatusCode).To(Equal(http.StatusRequestEntityTooLarge))
				Expect(decodeBody(resp)["detail"]).To(ContainSubstring("too many files"))
				Expect(processor.calls).To(BeZero())
			})
		})

		When("the upload is too large", func() {
			BeforeEach(func() {
				cfg.MaxUploadBytes = 1024
			})

			It("returns 413", func() {
				body, contentType := multipartBody(upload{field: "files", filename: "big.pdf", data: strings.Repeat("x", 4096)})
				resp := post(body, contentType)

				Expect(resp.StatusCode).To(Equal(http.StatusRequestEntityTooLarge))
				resp.Body.Close()
				Expect(processor.calls).To(BeZero())
			})
		})

		When("orchestration fails", func() {
			BeforeEach(func() {
				processor.err = errors.New("processing claim: context canceled")
			})

			It("returns 500 with the error text", func() {
				body, contentType := multipartBody(upload{field: "files", filename: "bill.pdf", data: "x"})
				resp := post(body, contentType)

				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				Expect(decodeBody(resp)).To(Equal(map[string]any{"detail": "processing claim: context canceled"}))
			})
		})

		When("the service rejects the file count", func() {
			BeforeEach(func() {
				processor.err = fmt.Errorf("%w: got 2, limit is 1", claim.ErrTooManyFiles)
			})

			It("returns 413", func() {
				body, contentType := multipartBody(upload{field: "files", filename: "bill.pdf", data: "x"})
				resp := post(body, contentType)
				Expect(resp.StatusCode).To(Equal(http.StatusRequestEntityTooLarge))
				resp.Body.Close()
			})
		})
	})

	Describe("metrics", func() {
		It("serves Prometheus metrics", func() {
			pipeline.RecordClaim("approved", 3)

			resp, err := http.Get(ghttpServer.URL() + "/metrics")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("superclaims_pipeline_claims_total"))
		})

		When("metrics are disabled", func() {
			BeforeEach(func() {
				pipeline = nil
			})

			It("does not expose the endpoint", func() {
				resp, err := http.Get(ghttpServer.URL() + "/metrics")
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			})
		})
	})
})
