package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/harperclay/expensify/internal/category"
	"github.com/harperclay/expensify/internal/common"
	"github.com/harperclay/expensify/internal/expense"
	"github.com/harperclay/expensify/internal/model"
)

const dateLayout = "2006-01-02"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "storage unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sessionResponse is the JSON view of a session snapshot.
type sessionResponse struct {
	Loading  bool             `json:"loading"`
	SignedIn bool             `json:"signedIn"`
	Allowed  bool             `json:"allowed"`
	Role     model.Role       `json:"role,omitempty"`
	Email    string           `json:"email,omitempty"`
	Profile  *profileResponse `json:"profile,omitempty"`
	Error    string           `json:"error,omitempty"`
}

type profileResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"displayName,omitempty"`
	AvatarURL   string     `json:"avatarUrl,omitempty"`
	Role        model.Role `json:"role,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastLoginAt time.Time  `json:"lastLoginAt"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess := s.browserSessionFor(w, r)
	snap := sess.holder.Snapshot()

	resp := sessionResponse{
		Loading:  snap.Loading,
		SignedIn: snap.SignedIn(),
		Allowed:  snap.Allowed,
		Role:     snap.Role,
	}
	if snap.Identity != nil {
		resp.Email = snap.Identity.Email
	}
	if snap.Profile != nil {
		resp.Profile = &profileResponse{
			ID:          snap.Profile.ID,
			Email:       snap.Profile.Email,
			DisplayName: snap.Profile.DisplayName,
			AvatarURL:   snap.Profile.AvatarURL,
			Role:        snap.Profile.Role,
			CreatedAt:   snap.Profile.CreatedAt,
			LastLoginAt: snap.Profile.LastLoginAt,
		}
	}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	sess := s.browserSessionFor(w, r)
	authURL, err := sess.holder.SignIn(r.Context())
	if err != nil {
		writeError(w, statusForError(err), "failed to begin sign-in")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"authUrl": authURL})
}

func (s *Server) handleSignInRedirect(w http.ResponseWriter, r *http.Request) {
	sess := s.browserSessionFor(w, r)
	authURL, err := sess.holder.SignIn(r.Context())
	if err != nil {
		writeError(w, statusForError(err), "failed to begin sign-in")
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		writeError(w, http.StatusBadRequest, "sign-in was not completed: "+errParam)
		return
	}

	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		writeError(w, http.StatusBadRequest, "missing state or code")
		return
	}

	sess := s.browserSessionFor(w, r)
	if err := sess.gateway.HandleCallback(r.Context(), state, code); err != nil {
		slog.Error("oauth callback failed", "error", err)
		writeError(w, statusForError(err), "sign-in could not be completed")
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	sess := s.browserSessionFor(w, r)
	if err := sess.holder.SignOut(r.Context()); err != nil {
		// The user is still signed in; say so instead of pretending.
		writeError(w, statusForError(err), "sign-out failed, you are still signed in")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

// categoryResponse is the JSON view of a category.
type categoryResponse struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Icon     model.IconRef `json:"icon"`
	IconPath string        `json:"iconPath"`
	IsCustom bool          `json:"isCustom"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.categories.List(r.Context(), ownerID(r))
	if err != nil {
		writeError(w, statusForError(err), "failed to list categories")
		return
	}

	resp := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		resp = append(resp, categoryResponse{
			ID:       c.ID,
			Name:     c.Name,
			Icon:     c.IconRef,
			IconPath: model.IconAsset(c.IconRef),
			IsCustom: c.IsCustom,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string        `json:"name"`
		Icon model.IconRef `json:"icon"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	id, err := s.categories.Create(r.Context(), ownerID(r), req.Name, req.Icon)
	switch {
	case errors.Is(err, category.ErrEmptyName), errors.Is(err, category.ErrNameTooLong):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		writeError(w, statusForError(err), "failed to create category")
	default:
		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	}
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	err := s.categories.Delete(r.Context(), ownerID(r), r.PathValue("id"))
	switch {
	case errors.Is(err, category.ErrBuiltinCategory):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrNotFound):
		writeError(w, http.StatusNotFound, "category not found")
	case err != nil:
		writeError(w, statusForError(err), "failed to delete category")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// expenseRequest is the JSON payload for creating an expense.
type expenseRequest struct {
	Amount         float64             `json:"amount"`
	Currency       string              `json:"currency"`
	OccurredOn     string              `json:"occurredOn"`
	Vendor         string              `json:"vendor"`
	CategoryID     string              `json:"categoryId"`
	CompanyAccount bool                `json:"companyAccount"`
	Type           model.ExpenseType   `json:"type"`
	Images         []model.StoredImage `json:"images,omitempty"`
}

// expenseResponse is the JSON view of an expense.
type expenseResponse struct {
	ID             string              `json:"id"`
	Amount         float64             `json:"amount"`
	Currency       string              `json:"currency"`
	OccurredOn     string              `json:"occurredOn"`
	Vendor         string              `json:"vendor"`
	CategoryID     string              `json:"categoryId"`
	CompanyAccount bool                `json:"companyAccount"`
	Type           model.ExpenseType   `json:"type"`
	Images         []model.StoredImage `json:"images,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.expenses.ListRecent(r.Context(), ownerID(r))
	if err != nil {
		writeError(w, statusForError(err), "failed to list expenses")
		return
	}

	resp := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		resp = append(resp, expenseResponse{
			ID:             e.ID,
			Amount:         e.Amount,
			Currency:       e.Currency,
			OccurredOn:     e.OccurredOn.Format(dateLayout),
			Vendor:         e.Vendor,
			CategoryID:     e.CategoryID,
			CompanyAccount: e.CompanyAccount,
			Type:           e.Type,
			Images:         e.Images,
			CreatedAt:      e.CreatedAt,
			UpdatedAt:      e.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if !decodeBody(w, r, &req) {
		return
	}

	occurredOn, err := time.Parse(dateLayout, req.OccurredOn)
	if err != nil {
		writeError(w, http.StatusBadRequest, "occurredOn must be a YYYY-MM-DD date")
		return
	}

	id, err := s.expenses.Create(r.Context(), ownerID(r), model.Expense{
		Amount:         req.Amount,
		Currency:       req.Currency,
		OccurredOn:     occurredOn,
		Vendor:         req.Vendor,
		CategoryID:     req.CategoryID,
		CompanyAccount: req.CompanyAccount,
		Type:           req.Type,
		Images:         req.Images,
	})
	switch {
	case isValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		writeError(w, statusForError(err), "failed to create expense")
	default:
		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	}
}

func (s *Server) handleListVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := s.expenses.Vendors(r.Context(), ownerID(r))
	if err != nil {
		writeError(w, statusForError(err), "failed to list vendors")
		return
	}
	writeJSON(w, http.StatusOK, vendors)
}

func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename string `json:"filename"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	img, err := s.expenses.UploadReceiptImage(r.Context(), ownerID(r), req.Filename)
	if err != nil {
		writeError(w, statusForError(err), "failed to upload image")
		return
	}
	writeJSON(w, http.StatusCreated, img)
}

func isValidationError(err error) bool {
	return errors.Is(err, expense.ErrNonPositiveAmount) ||
		errors.Is(err, expense.ErrUnknownCurrency) ||
		errors.Is(err, expense.ErrMissingDate) ||
		errors.Is(err, expense.ErrMissingVendor) ||
		errors.Is(err, expense.ErrVendorTooLong) ||
		errors.Is(err, expense.ErrMissingCategory) ||
		errors.Is(err, expense.ErrInvalidExpenseType) ||
		errors.Is(err, expense.ErrTooManyImages)
}
