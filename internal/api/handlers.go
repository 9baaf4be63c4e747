package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fleetdesk/internal/models"
	"fleetdesk/internal/service"
)

type createBookingRequest struct {
	CustomerID      string `json:"customer_id"`
	CarID           string `json:"car_id"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	PickupLocation  string `json:"pickup_location"`
	DropoffLocation string `json:"dropoff_location"`
	DailyRateCents  int64  `json:"daily_rate_cents"`
}

type updateBookingRequest struct {
	CarID           *string `json:"car_id"`
	StartDate       *string `json:"start_date"`
	EndDate         *string `json:"end_date"`
	PickupLocation  *string `json:"pickup_location"`
	DropoffLocation *string `json:"dropoff_location"`
	DailyRateCents  *int64  `json:"daily_rate_cents"`
}

type cancelBookingRequest struct {
	Reason string `json:"reason"`
}

func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listBookings(w, r)
	case http.MethodPost:
		s.createBooking(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) createBooking(w http.ResponseWriter, r *http.Request) {
	var body createBookingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	start, err := parseDateParam(body.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_date; expected YYYY-MM-DD")
		return
	}
	end, err := parseDateParam(body.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_date; expected YYYY-MM-DD")
		return
	}

	input := models.Booking{
		CustomerID:      body.CustomerID,
		CarID:           body.CarID,
		StartDate:       start,
		EndDate:         end,
		PickupLocation:  body.PickupLocation,
		DropoffLocation: body.DropoffLocation,
		DailyRateCents:  body.DailyRateCents,
	}

	booking, err := s.bookings.CreateBooking(r.Context(), input, CallerFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) listBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.BookingFilter{
		Status:     strings.ToUpper(strings.TrimSpace(q.Get("status"))),
		CarID:      strings.TrimSpace(q.Get("car_id")),
		CustomerID: strings.TrimSpace(q.Get("customer_id")),
	}
	page := parseIntParam(q.Get("page"), 1)
	limit := parseIntParam(q.Get("limit"), models.DefaultPageLimit)

	result, err := s.bookings.ListBookings(r.Context(), filter, page, limit, CallerFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleBookingSubtree routes /api/v1/bookings/{id} and its sub-resources,
// plus the fixed /upcoming and /expiring collections.
func (s *HTTPServer) handleBookingSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/bookings/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")

	switch {
	case len(parts) == 1 && parts[0] == "upcoming":
		s.upcomingBookings(w, r)
	case len(parts) == 1 && parts[0] == "expiring":
		s.expiringBookings(w, r)
	case len(parts) == 1 && parts[0] != "":
		s.bookingByID(w, r, parts[0])
	case len(parts) == 2:
		s.bookingAction(w, r, parts[0], parts[1])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) bookingByID(w http.ResponseWriter, r *http.Request, id string) {
	caller := CallerFromContext(r.Context())

	switch r.Method {
	case http.MethodGet:
		booking, err := s.bookings.GetBooking(r.Context(), id, caller)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, booking)

	case http.MethodPatch:
		var body updateBookingRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		patch := models.BookingPatch{
			CarID:           body.CarID,
			PickupLocation:  body.PickupLocation,
			DropoffLocation: body.DropoffLocation,
			DailyRateCents:  body.DailyRateCents,
		}
		if body.StartDate != nil {
			start, err := parseDateParam(*body.StartDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid start_date; expected YYYY-MM-DD")
				return
			}
			patch.StartDate = &start
		}
		if body.EndDate != nil {
			end, err := parseDateParam(*body.EndDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid end_date; expected YYYY-MM-DD")
				return
			}
			patch.EndDate = &end
		}

		booking, err := s.bookings.UpdateBooking(r.Context(), id, patch, caller)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, booking)

	case http.MethodDelete:
		if err := s.bookings.DeleteBooking(r.Context(), id, caller); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) bookingAction(w http.ResponseWriter, r *http.Request, id, action string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	caller := CallerFromContext(r.Context())

	switch action {
	case "confirm":
		booking, err := s.bookings.ConfirmBooking(r.Context(), id, caller)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, booking)

	case "cancel":
		var body cancelBookingRequest
		if r.Body != nil {
			// Body is optional; a bare POST cancels with the default reason.
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		booking, err := s.bookings.CancelBooking(r.Context(), id, body.Reason, caller)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, booking)

	case "convert":
		booking, err := s.bookings.ConvertToContract(r.Context(), id, caller)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, booking)

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) upcomingBookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	days := parseIntParam(r.URL.Query().Get("days"), 7)
	bookings, err := s.bookings.GetUpcomingBookings(r.Context(), days, CallerFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) expiringBookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	hours := parseIntParam(r.URL.Query().Get("hours"), 24)
	bookings, err := s.bookings.GetExpiringBookings(r.Context(), hours, CallerFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	carID := strings.TrimSpace(q.Get("car_id"))
	start, err := parseDateParam(q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start; expected YYYY-MM-DD")
		return
	}
	end, err := parseDateParam(q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end; expected YYYY-MM-DD")
		return
	}

	available, err := s.bookings.CheckAvailability(r.Context(), carID, start, end)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"car_id":    carID,
		"start":     start.Format("2006-01-02"),
		"end":       end.Format("2006-01-02"),
		"available": available,
	})
}

func (s *HTTPServer) handleCustomerBookings(w http.ResponseWriter, r *http.Request) {
	id, ok := subresourceID(r.URL.Path, "/api/v1/customers/", "bookings")
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	bookings, err := s.bookings.GetBookingsByCustomer(r.Context(), id, CallerFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleCarBookings(w http.ResponseWriter, r *http.Request) {
	id, ok := subresourceID(r.URL.Path, "/api/v1/cars/", "bookings")
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	bookings, err := s.bookings.GetBookingsByCar(r.Context(), id, CallerFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleBookingsReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	caller := CallerFromContext(r.Context())
	if !caller.Privileged() {
		s.writeServiceError(w, r, service.ErrUnauthorized)
		return
	}

	filter := models.BookingFilter{
		Status: strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))),
		CarID:  strings.TrimSpace(r.URL.Query().Get("car_id")),
	}

	var all []*models.Booking
	for page := 1; ; page++ {
		result, err := s.bookings.ListBookings(r.Context(), filter, page, models.MaxPageLimit, caller)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		all = append(all, result.Data...)
		if page >= result.Pages {
			break
		}
	}

	fileName := fmt.Sprintf("bookings_%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))

	if err := s.exporter.WriteBookingsReport(w, all); err != nil {
		s.logger.Error().Err(err).Msg("write bookings report")
	}
}

func subresourceID(path, prefix, sub string) (string, bool) {
	rest := strings.TrimPrefix(path, prefix)
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != sub {
		return "", false
	}
	return parts[0], true
}

func parseDateParam(raw string) (time.Time, error) {
	return time.Parse("2006-01-02", strings.TrimSpace(raw))
}

func parseIntParam(raw string, fallback int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
