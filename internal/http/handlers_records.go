package http

import (
	"net/http"

	"financas/internal/core"
	"financas/internal/services"
	"financas/internal/session"
)

func sessionOf(r *http.Request) session.Session {
	s, _ := session.FromContext(r.Context())
	return s
}

// Purchases

type purchaseRequest struct {
	Date            string `json:"date"`
	Total           amount `json:"total"`
	DurationMinutes int    `json:"duration_minutes"`
	PaymentMethod   string `json:"payment_method"`
}

func (s *Server) handleCreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		s.writeError(w, r, &core.ValidationError{Field: "date", Err: err})
		return
	}
	total, err := req.Total.money("total")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	sess := sessionOf(r)
	p, err := s.svc.RecordPurchase(r.Context(), sess, services.PurchaseInput{
		Date:            date,
		Total:           total,
		DurationMinutes: req.DurationMinutes,
		PaymentMethod:   core.PaymentMethod(sanitizeInput(req.PaymentMethod)),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit.LogRecordCreated(r.Context(), sess.UserID, "purchase", p.ID, p.Total.Cents)
	writeJSON(w, http.StatusCreated, newPurchaseView(p))
}

// handleListPurchases lists purchases in [from, to]; both default to the
// bounds of the current month.
func (s *Server) handleListPurchases(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	first, last := core.MonthRange(now.Year(), int(now.Month()))
	q := r.URL.Query()
	from, err := dateParam(q, "from", first)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	to, err := dateParam(q, "to", last)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	items, err := s.svc.ListPurchases(r.Context(), sessionOf(r), from, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]purchaseView, 0, len(items))
	var total core.Money
	for _, p := range items {
		out = append(out, newPurchaseView(p))
		total = total.Add(p.Total)
	}
	avg := core.AverageDurationMinutes(items)
	writeJSON(w, http.StatusOK, struct {
		From                   string         `json:"from"`
		To                     string         `json:"to"`
		Purchases              []purchaseView `json:"purchases"`
		Count                  int            `json:"count"`
		Total                  moneyView      `json:"total"`
		AverageDurationMinutes int            `json:"average_duration_minutes"`
		AverageDuration        string         `json:"average_duration"`
	}{from.String(), to.String(), out, len(out), newMoneyView(total), avg, core.FormatDuration(avg)})
}

// Bills

type billRequest struct {
	Name     string `json:"name"`
	Amount   amount `json:"amount"`
	Category string `json:"category"`
	Type     string `json:"type"`
	DueDay   int    `json:"due_day"`
}

func (req billRequest) input() (services.BillInput, error) {
	amt, err := req.Amount.money("amount")
	if err != nil {
		return services.BillInput{}, err
	}
	return services.BillInput{
		Name:     sanitizeInput(req.Name),
		Amount:   amt,
		Category: core.BillCategory(sanitizeInput(req.Category)),
		Type:     core.BillType(sanitizeInput(req.Type)),
		DueDay:   req.DueDay,
	}, nil
}

func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	var req billRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sess := sessionOf(r)
	b, err := s.svc.RecordBill(r.Context(), sess, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit.LogRecordCreated(r.Context(), sess.UserID, "bill", b.ID, b.Amount.Cents)
	writeJSON(w, http.StatusCreated, newBillView(b))
}

func (s *Server) handleUpdateBill(w http.ResponseWriter, r *http.Request) {
	var req billRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	b, err := s.svc.UpdateBill(r.Context(), sessionOf(r), r.PathValue("id"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBillView(b))
}

func (s *Server) handleDeactivateBill(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeactivateBill(r.Context(), sessionOf(r), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	bills, err := s.svc.ListActiveBills(r.Context(), sessionOf(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]billView, 0, len(bills))
	for _, b := range bills {
		out = append(out, newBillView(b))
	}
	writeJSON(w, http.StatusOK, struct {
		Bills      []billView     `json:"bills"`
		Categories []categoryView `json:"categories"`
	}{out, newCategoryViews(core.AggregateCategories(bills))})
}

const defaultUpcomingDays = 7

func (s *Server) handleUpcomingBills(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r.URL.Query(), "days", defaultUpcomingDays)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	upcoming, err := s.svc.UpcomingBills(r.Context(), sessionOf(r), s.now(), days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]upcomingBillView, 0, len(upcoming))
	for _, u := range upcoming {
		out = append(out, upcomingBillView{
			billView:  newBillView(u.Bill),
			DueDate:   u.DueDate.String(),
			DaysUntil: u.DaysUntil,
		})
	}
	writeJSON(w, http.StatusOK, struct {
		Days  int                `json:"days"`
		Bills []upcomingBillView `json:"bills"`
	}{days, out})
}

// Salaries and tithes

type salaryRequest struct {
	Amount amount `json:"amount"`
	Month  int    `json:"month"`
	Year   int    `json:"year"`
}

func (s *Server) handleRegisterSalary(w http.ResponseWriter, r *http.Request) {
	var req salaryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	amt, err := req.Amount.money("amount")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sess := sessionOf(r)
	sal, tithe, err := s.svc.RegisterSalary(r.Context(), sess, amt, req.Month, req.Year)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.audit.LogRecordCreated(r.Context(), sess.UserID, "salary", sal.ID, sal.Amount.Cents)
	s.audit.LogRecordCreated(r.Context(), sess.UserID, "tithe", tithe.ID, tithe.Amount.Cents)
	writeJSON(w, http.StatusCreated, struct {
		Salary salaryView `json:"salary"`
		Tithe  titheView  `json:"tithe"`
	}{newSalaryView(sal), newTitheView(tithe)})
}

func (s *Server) handleTitheOverview(w http.ResponseWriter, r *http.Request) {
	o, err := s.svc.TitheOverview(r.Context(), sessionOf(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTitheOverviewView(o))
}

func (s *Server) handlePayTithe(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.MarkTithePaid(r.Context(), sessionOf(r), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTitheView(t))
}
