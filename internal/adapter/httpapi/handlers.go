package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rebuildfund/rebuildfund-backend/internal/auth"
	"github.com/rebuildfund/rebuildfund-backend/internal/domain"
	"github.com/rebuildfund/rebuildfund-backend/internal/platform/logger"
	"github.com/rebuildfund/rebuildfund-backend/internal/usecase/dashboard"
	"github.com/rebuildfund/rebuildfund-backend/internal/usecase/investment"
	"github.com/rebuildfund/rebuildfund-backend/internal/usecase/project"
)

// IdempotencyKeyHeader may carry the key instead of the request body
const IdempotencyKeyHeader = "Idempotency-Key"

// Handler serves the REST API
type Handler struct {
	Investments *investment.InvestmentService
	Projects    *project.ProjectService
	Dashboard   *dashboard.DashboardService
	Tokens      *auth.TokenManager
	log         *logger.Logger
}

func NewHandler(
	investments *investment.InvestmentService,
	projects *project.ProjectService,
	dash *dashboard.DashboardService,
	tokens *auth.TokenManager,
	log *logger.Logger,
) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{
		Investments: investments,
		Projects:    projects,
		Dashboard:   dash,
		Tokens:      tokens,
		log:         log.With("handler", "Handler"),
	}
}

func identity(c *gin.Context) *domain.Identity {
	return domain.IdentityFrom(c.Request.Context())
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondInvalid(c, domain.CodeInvalidArgument, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) Health(c *gin.Context) {
	RespondOK(c, gin.H{"status": "ok"})
}

// IssueDevToken signs a token for any identity. Only routed in debug mode.
func (h *Handler) IssueDevToken(c *gin.Context) {
	var req DevTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondInvalid(c, domain.CodeInvalidArgument, "invalid request body")
		return
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		RespondInvalid(c, domain.CodeInvalidArgument, "unknown role")
		return
	}
	userID := uuid.New()
	if strings.TrimSpace(req.UserID) != "" {
		if userID, err = uuid.Parse(req.UserID); err != nil {
			RespondInvalid(c, domain.CodeInvalidArgument, "invalid userId")
			return
		}
	}
	token, err := h.Tokens.Issue(domain.Identity{UserID: userID, Role: role, Email: req.Email})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"token": token, "userId": userID.String(), "role": string(role)})
}

func (h *Handler) ListProjects(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(project.DefaultPageSize)))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	projects, err := h.Projects.List(c.Request.Context(), c.Query("status"), limit, offset)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"projects": toProjectList(projects)})
}

func (h *Handler) GetProject(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := h.Projects.Get(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, toProjectResponse(p))
}

func (h *Handler) ProjectReport(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	r, err := h.Projects.Report(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, toReportResponse(r))
}

func (h *Handler) CreateProject(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondInvalid(c, domain.CodeInvalidArgument, "invalid request body")
		return
	}
	p, err := h.Projects.Create(c.Request.Context(), identity(c), project.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		GoalAmount:  req.GoalAmount,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toProjectResponse(p))
}

func (h *Handler) ListMyProjects(c *gin.Context) {
	projects, err := h.Projects.ListMine(c.Request.Context(), identity(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"projects": toProjectList(projects)})
}

func (h *Handler) DeleteProject(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.Projects.Delete(c.Request.Context(), identity(c), id); err != nil {
		RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) UploadProjectImage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	fh, err := c.FormFile("image")
	if err != nil {
		RespondInvalid(c, domain.CodeInvalidArgument, "multipart field \"image\" is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		RespondInvalid(c, domain.CodeInvalidArgument, "unreadable upload")
		return
	}
	defer f.Close()

	p, err := h.Projects.AttachImage(c.Request.Context(), identity(c), id, fh.Filename, f)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, toProjectResponse(p))
}

func (h *Handler) ReviewProject(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Approve == nil {
		RespondInvalid(c, domain.CodeInvalidArgument, "approve is required")
		return
	}
	p, err := h.Projects.Review(c.Request.Context(), identity(c), id, *req.Approve)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, toProjectResponse(p))
}

// Invest records an investment. A replayed request answers 200 with the
// original record, a new one 201.
func (h *Handler) Invest(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req InvestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondInvalid(c, domain.CodeInvalidArgument, "invalid request body")
		return
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if header := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader)); header != "" {
		if key != "" && key != header {
			RespondInvalid(c, domain.CodeInvalidArgument, "idempotency key in header and body differ")
			return
		}
		key = header
	}

	res, err := h.Investments.Invest(c.Request.Context(), identity(c), investment.InvestInput{
		ProjectID:      projectID,
		Amount:         req.Amount,
		IdempotencyKey: key,
		TransactionRef: req.TransactionRef,
		PaymentMethod:  req.PaymentMethod,
	})
	if err != nil {
		RespondError(c, err)
		return
	}

	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, toInvestResponse(res.Investment, res.Project, res.Duplicate))
}

func (h *Handler) ListProjectInvestments(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	investments, err := h.Investments.ListForProject(c.Request.Context(), identity(c), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"investments": toInvestmentList(investments)})
}

func (h *Handler) ListMyInvestments(c *gin.Context) {
	investments, err := h.Investments.ListMine(c.Request.Context(), identity(c), c.Query("status"))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"investments": toInvestmentList(investments)})
}

func (h *Handler) TransitionInvestment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondInvalid(c, domain.CodeInvalidArgument, "invalid request body")
		return
	}
	to, err := domain.ParseInvestmentStatus(req.Status)
	if err != nil {
		RespondInvalid(c, domain.CodeInvalidArgument, err.Error())
		return
	}
	res, err := h.Investments.Transition(c.Request.Context(), identity(c), id, to)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"investment": toInvestmentResponse(res.Investment),
		"project":    toProjectResponse(res.Project),
	})
}

func (h *Handler) Portfolio(c *gin.Context) {
	res, err := h.Dashboard.GetPortfolio(c.Request.Context(), identity(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, toPortfolioResponse(res))
}

func (h *Handler) OwnerSummary(c *gin.Context) {
	res, err := h.Dashboard.GetOwnerSummary(c.Request.Context(), identity(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, toOwnerSummaryResponse(res))
}
