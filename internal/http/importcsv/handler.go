package importcsv

import (
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/tally/internal/duplicate"
	"github.com/MrJamesThe3rd/tally/internal/http/render"
	"github.com/MrJamesThe3rd/tally/internal/http/transaction"
	"github.com/MrJamesThe3rd/tally/internal/importer"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
)

const defaultMaxUpload = 10 << 20

type Handler struct {
	coord     *importer.Coordinator
	maxUpload int64
}

func NewHandler(coord *importer.Coordinator, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}

	return &Handler{coord: coord, maxUpload: maxUpload}
}

// Routes serves imports into the ledger in the {ledgerID} parameter.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.importFile)
	r.Post("/preview", h.preview)
}

type failureResponse struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

type candidateResponse struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	Sequence      int64           `json:"sequence"`
	Date          string          `json:"date"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	Tier          string          `json:"tier"`
	Score         float64         `json:"score"`
	Days          int             `json:"days"`
}

type suggestionResponse struct {
	Row        int                 `json:"row"`
	Candidates []candidateResponse `json:"candidates"`
}

type reportResponse struct {
	ImportID         uuid.UUID              `json:"import_id"`
	ImportTag        string                 `json:"import_tag"`
	Policy           string                 `json:"policy"`
	Imported         int                    `json:"imported"`
	SkippedDuplicate int                    `json:"skipped_duplicate"`
	Replaced         int                    `json:"replaced"`
	FailedValidation int                    `json:"failed_validation"`
	Failures         []failureResponse      `json:"failures"`
	Suggestions      []suggestionResponse   `json:"suggestions"`
	Transactions     []transaction.Response `json:"transactions"`
	Error            string                 `json:"error,omitempty"`
}

type previewRowResponse struct {
	Row         int                 `json:"row"`
	Verdict     importer.Verdict    `json:"verdict"`
	Date        string              `json:"date,omitempty"`
	Amount      *decimal.Decimal    `json:"amount,omitempty"`
	Description string              `json:"description,omitempty"`
	Category    string              `json:"category,omitempty"`
	Reason      string              `json:"reason,omitempty"`
	Candidates  []candidateResponse `json:"candidates,omitempty"`
}

type previewResponse struct {
	Unique     int                  `json:"unique"`
	Duplicates int                  `json:"duplicates"`
	Near       int                  `json:"near"`
	Malformed  int                  `json:"malformed"`
	Rows       []previewRowResponse `json:"rows"`
}

func toCandidates(cs []duplicate.Candidate) []candidateResponse {
	out := make([]candidateResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, candidateResponse{
			TransactionID: c.Transaction.ID,
			Sequence:      c.Transaction.Sequence,
			Date:          c.Transaction.Date.Format(ledger.DateLayout),
			Amount:        c.Transaction.Amount,
			Description:   c.Transaction.Description,
			Tier:          c.Tier.String(),
			Score:         c.Score,
			Days:          c.Days,
		})
	}

	return out
}

func toReportResponse(rep *importer.Report) reportResponse {
	resp := reportResponse{
		ImportID:         rep.ImportID,
		ImportTag:        rep.ImportTag,
		Policy:           rep.Policy.String(),
		Imported:         rep.Imported,
		SkippedDuplicate: rep.SkippedDuplicate,
		Replaced:         rep.Replaced,
		FailedValidation: rep.FailedValidation,
		Failures:         make([]failureResponse, 0, len(rep.Failures)),
		Suggestions:      make([]suggestionResponse, 0, len(rep.Suggestions)),
		Transactions:     transaction.ToResponseList(rep.Transactions),
	}

	for _, f := range rep.Failures {
		resp.Failures = append(resp.Failures, failureResponse{Row: f.Row, Reason: f.Reason})
	}

	for _, s := range rep.Suggestions {
		resp.Suggestions = append(resp.Suggestions, suggestionResponse{Row: s.Row, Candidates: toCandidates(s.Candidates)})
	}

	return resp
}

// upload reads the multipart file and the ledger id shared by both endpoints.
func (h *Handler) upload(w http.ResponseWriter, r *http.Request) (uuid.UUID, multipart.File, string, bool) {
	ledgerID, ok := render.ID(w, chi.URLParam(r, "ledgerID"))
	if !ok {
		return uuid.Nil, nil, "", false
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		render.BadRequest(w, "failed to parse form: "+err.Error())
		return uuid.Nil, nil, "", false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		render.BadRequest(w, "file field is required")
		return uuid.Nil, nil, "", false
	}

	return ledgerID, file, header.Filename, true
}

func format(r *http.Request) importer.Format {
	if f := r.FormValue("format"); f != "" {
		return importer.Format(f)
	}

	return importer.FormatCSV
}

func (h *Handler) importFile(w http.ResponseWriter, r *http.Request) {
	ledgerID, file, fileName, ok := h.upload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	policy, err := importer.ParsePolicy(r.FormValue("policy"))
	if err != nil {
		render.Error(w, r, err)
		return
	}

	opts := importer.Options{
		FileName:  fileName,
		ImportTag: r.FormValue("import_tag"),
	}

	if s := r.FormValue("chunk_size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			render.BadRequest(w, "chunk_size must be a positive integer")
			return
		}

		opts.ChunkSize = n
	}

	report, err := h.coord.ImportFile(r.Context(), ledgerID, format(r), file, policy, opts)
	if err != nil && report == nil {
		render.Error(w, r, err)
		return
	}

	resp := toReportResponse(report)
	status := http.StatusCreated

	if err != nil {
		slog.Error("import partially committed",
			"ledger", ledgerID,
			"import", report.ImportID,
			"imported", report.Imported,
			"error", err,
		)

		status = render.Status(err)
		resp.Error = err.Error()

		if status >= http.StatusInternalServerError {
			resp.Error = "import was only partially committed"
		}

		if ledger.IsRetryable(err) {
			w.Header().Set("Retry-After", strconv.Itoa(render.RetryAfter))
		}
	}

	render.JSON(w, status, resp)
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	ledgerID, file, _, ok := h.upload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	p, err := h.coord.PreviewFile(r.Context(), ledgerID, format(r), file)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	resp := previewResponse{
		Unique:     p.Unique,
		Duplicates: p.Duplicates,
		Near:       p.Near,
		Malformed:  p.Malformed,
		Rows:       make([]previewRowResponse, 0, len(p.Rows)),
	}

	for _, row := range p.Rows {
		out := previewRowResponse{
			Row:        row.Row,
			Verdict:    row.Verdict,
			Reason:     row.Reason,
			Candidates: toCandidates(row.Candidates),
		}

		if row.Verdict != importer.VerdictMalformed {
			out.Date = row.Entry.Date.Format(ledger.DateLayout)
			out.Amount = new(row.Entry.Amount)
			out.Description = row.Entry.Description
			out.Category = row.Entry.Category
		}

		resp.Rows = append(resp.Rows, out)
	}

	render.JSON(w, http.StatusOK, resp)
}
