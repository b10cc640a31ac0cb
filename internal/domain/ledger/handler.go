package ledger

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medledger/medledger/internal/platform/auth"
	"github.com/medledger/medledger/pkg/pagination"
)

type Handler struct {
	ledger *Ledger
	logger zerolog.Logger
}

func NewHandler(l *Ledger, logger zerolog.Logger) *Handler {
	return &Handler{ledger: l, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patients", h.RegisterPatient)
	api.GET("/patients/:id", h.GetPatientInfo)
	api.GET("/patients/:id/registered", h.IsPatientRegistered)
	api.POST("/patients/:id/records", h.AddMedicalRecord)
	api.GET("/patients/:id/records", h.GetMedicalHistory)
	api.POST("/patients/:id/allergies", h.AddAllergy)
	api.PUT("/patients/:id/emergency-contact", h.UpdateEmergencyContact)
	api.GET("/patients/:id/emergency", h.EmergencyAccess)
	api.POST("/patients/:id/deactivate", h.DeactivatePatient)
	api.POST("/patients/:id/reactivate", h.ReactivatePatient)

	api.GET("/patients/:id/doctors", h.GetAuthorizedDoctors)
	api.POST("/patients/:id/doctors", h.AuthorizeDoctor)
	api.GET("/patients/:id/doctors/:doctor", h.IsAuthorizedDoctor)
	api.DELETE("/patients/:id/doctors/:doctor", h.RevokeDoctor)
	api.GET("/patients/:id/institutions", h.GetAuthorizedInstitutions)
	api.POST("/patients/:id/institutions", h.AuthorizeInstitution)
	api.GET("/patients/:id/institutions/:institution", h.IsAuthorizedInstitution)
	api.DELETE("/patients/:id/institutions/:institution", h.RevokeInstitution)

	api.POST("/doctors", h.RegisterDoctor)
	api.GET("/doctors/:id", h.GetDoctorInfo)
	api.GET("/doctors/:id/registered", h.IsDoctorRegistered)
	api.POST("/institutions", h.RegisterInstitution)
	api.GET("/institutions/:id", h.GetInstitutionInfo)
	api.GET("/institutions/:id/registered", h.IsInstitutionRegistered)

	api.GET("/admin", h.GetAdmin)
	api.PUT("/admin", h.TransferAdmin)
	api.GET("/records/count", h.GetTotalRecords)
	api.GET("/audit-events", h.ListAuditEvents)
}

// httpError maps a ledger error to an echo error carrying its reason.
func httpError(err error) error {
	status := http.StatusInternalServerError
	switch KindOf(err) {
	case KindUnauthorized, KindAccessDenied:
		status = http.StatusForbidden
	case KindNotFound:
		status = http.StatusNotFound
	case KindAlreadyExists, KindInactiveAccount:
		status = http.StatusConflict
	case KindInvalidArgument:
		status = http.StatusBadRequest
	}
	return echo.NewHTTPError(status, err.Error())
}

func caller(c echo.Context) string {
	return auth.UserIDFromContext(c.Request().Context())
}

type registeredResponse struct {
	Registered bool `json:"registered"`
}

type authorizedResponse struct {
	Authorized bool `json:"authorized"`
}

// -- Registry --

func (h *Handler) RegisterPatient(c echo.Context) error {
	var r PatientRegistration
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.ledger.RegisterPatient(c.Request().Context(), caller(c), r); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) RegisterDoctor(c echo.Context) error {
	var r DoctorRegistration
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.ledger.RegisterDoctor(c.Request().Context(), caller(c), r); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) RegisterInstitution(c echo.Context) error {
	var r InstitutionRegistration
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.ledger.RegisterInstitution(c.Request().Context(), caller(c), r); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) IsPatientRegistered(c echo.Context) error {
	return c.JSON(http.StatusOK, registeredResponse{Registered: h.ledger.IsPatientRegistered(c.Param("id"))})
}

func (h *Handler) IsDoctorRegistered(c echo.Context) error {
	return c.JSON(http.StatusOK, registeredResponse{Registered: h.ledger.IsDoctorRegistered(c.Param("id"))})
}

func (h *Handler) IsInstitutionRegistered(c echo.Context) error {
	return c.JSON(http.StatusOK, registeredResponse{Registered: h.ledger.IsInstitutionRegistered(c.Param("id"))})
}

func (h *Handler) GetDoctorInfo(c echo.Context) error {
	d, err := h.ledger.GetDoctorInfo(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) GetInstitutionInfo(c echo.Context) error {
	in, err := h.ledger.GetInstitutionInfo(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, in)
}

// -- Records --

type addRecordRequest struct {
	Content    string `json:"content"`
	RecordType string `json:"record_type"`
}

type addRecordResponse struct {
	ID uint64 `json:"id"`
}

func (h *Handler) AddMedicalRecord(c echo.Context) error {
	var req addRecordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	id, err := h.ledger.AddMedicalRecord(c.Request().Context(), caller(c), c.Param("id"), req.Content, req.RecordType)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, addRecordResponse{ID: id})
}

// GetMedicalHistory serves both the full history and, with ?type=, the
// records of one type.
func (h *Handler) GetMedicalHistory(c echo.Context) error {
	var (
		records []MedicalRecord
		err     error
	)
	if c.QueryParams().Has("type") {
		records, err = h.ledger.GetRecordsByType(caller(c), c.Param("id"), c.QueryParam("type"))
	} else {
		records, err = h.ledger.GetMedicalHistory(caller(c), c.Param("id"))
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, records)
}

type addAllergyRequest struct {
	Allergy string `json:"allergy"`
}

func (h *Handler) AddAllergy(c echo.Context) error {
	var req addAllergyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.ledger.AddAllergy(c.Request().Context(), caller(c), c.Param("id"), req.Allergy); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetPatientInfo(c echo.Context) error {
	info, err := h.ledger.GetPatientInfo(caller(c), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, info)
}

// EmergencyAccess always leaves a WARN log line, whether or not the ledger
// records an audit event for the read.
func (h *Handler) EmergencyAccess(c echo.Context) error {
	who := caller(c)
	patient := c.Param("id")
	info, err := h.ledger.EmergencyAccess(c.Request().Context(), who, patient)

	evt := h.logger.Warn()
	if err != nil {
		evt = evt.Err(err)
	}
	evt.
		Str("type", "emergency_access").
		Str("doctor_id", who).
		Str("patient_id", patient).
		Str("remote_ip", c.RealIP()).
		Time("timestamp", time.Now().UTC()).
		Msg("emergency_access")

	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, info)
}

// -- Authorization --

type authorizeDoctorRequest struct {
	DoctorID string `json:"doctor_id"`
}

type authorizeInstitutionRequest struct {
	InstitutionID string `json:"institution_id"`
}

func (h *Handler) AuthorizeDoctor(c echo.Context) error {
	var req authorizeDoctorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.ledger.AuthorizeDoctor(c.Request().Context(), caller(c), c.Param("id"), req.DoctorID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RevokeDoctor(c echo.Context) error {
	if err := h.ledger.RevokeDoctor(c.Request().Context(), caller(c), c.Param("id"), c.Param("doctor")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) IsAuthorizedDoctor(c echo.Context) error {
	return c.JSON(http.StatusOK, authorizedResponse{Authorized: h.ledger.IsAuthorizedDoctor(c.Param("id"), c.Param("doctor"))})
}

func (h *Handler) GetAuthorizedDoctors(c echo.Context) error {
	ids, err := h.ledger.GetAuthorizedDoctors(caller(c), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ids)
}

func (h *Handler) AuthorizeInstitution(c echo.Context) error {
	var req authorizeInstitutionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.ledger.AuthorizeInstitution(c.Request().Context(), caller(c), c.Param("id"), req.InstitutionID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RevokeInstitution(c echo.Context) error {
	if err := h.ledger.RevokeInstitution(c.Request().Context(), caller(c), c.Param("id"), c.Param("institution")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) IsAuthorizedInstitution(c echo.Context) error {
	return c.JSON(http.StatusOK, authorizedResponse{Authorized: h.ledger.IsAuthorizedInstitution(c.Param("id"), c.Param("institution"))})
}

func (h *Handler) GetAuthorizedInstitutions(c echo.Context) error {
	ids, err := h.ledger.GetAuthorizedInstitutions(caller(c), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ids)
}

// -- Administration --

func (h *Handler) DeactivatePatient(c echo.Context) error {
	if err := h.ledger.DeactivatePatient(c.Request().Context(), caller(c), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ReactivatePatient(c echo.Context) error {
	if err := h.ledger.ReactivatePatient(c.Request().Context(), caller(c), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type emergencyContactRequest struct {
	EmergencyContact string `json:"emergency_contact"`
}

func (h *Handler) UpdateEmergencyContact(c echo.Context) error {
	var req emergencyContactRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.ledger.UpdatePatientEmergencyContact(c.Request().Context(), caller(c), c.Param("id"), req.EmergencyContact); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type adminRequest struct {
	NewAdmin string `json:"new_admin"`
}

type adminResponse struct {
	Admin string `json:"admin"`
}

func (h *Handler) GetAdmin(c echo.Context) error {
	return c.JSON(http.StatusOK, adminResponse{Admin: h.ledger.GetAdmin()})
}

func (h *Handler) TransferAdmin(c echo.Context) error {
	var req adminRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.ledger.TransferAdmin(c.Request().Context(), caller(c), req.NewAdmin); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, adminResponse{Admin: req.NewAdmin})
}

type totalRecordsResponse struct {
	Total uint64 `json:"total"`
}

func (h *Handler) GetTotalRecords(c echo.Context) error {
	n, err := h.ledger.GetTotalRecords(caller(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, totalRecordsResponse{Total: n})
}

func (h *Handler) ListAuditEvents(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.ledger.AuditEvents(caller(c), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
