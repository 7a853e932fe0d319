package handlers

import (
	"errors"
	"log"
	"net/http"

	"hrms-service/middleware"
	"hrms-service/models"
	"hrms-service/services"
	"hrms-service/store"

	"github.com/gorilla/mux"
)

type CreateEmployeeRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=6,max=72"`
	Name       string `json:"name" validate:"required,min=1"`
	Department string `json:"department"`
	Position   string `json:"position"`
}

type UpdateEmployeeRequest struct {
	Email      *string      `json:"email" validate:"omitempty,email"`
	Name       *string      `json:"name" validate:"omitempty,min=1"`
	Department *string      `json:"department"`
	Position   *string      `json:"position"`
	Role       *models.Role `json:"role" validate:"omitempty,oneof=ADMIN EMPLOYEE"`
}

type EmployeeHandler struct {
	creds *services.Credentials
}

func NewEmployeeHandler(creds *services.Credentials) *EmployeeHandler {
	return &EmployeeHandler{creds: creds}
}

func (h *EmployeeHandler) ListHandler(w http.ResponseWriter, r *http.Request) error {
	employees, err := h.creds.FindAll(r.Context(), store.UserFilter{Role: models.RoleEmployee})
	if err != nil {
		return internalError(err)
	}
	middleware.WriteJSON(w, http.StatusOK, JSONResponse{"employees": employees})
	return nil
}

func (h *EmployeeHandler) GetHandler(w http.ResponseWriter, r *http.Request) error {
	employee, err := h.creds.FindByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return employeeError(err)
	}
	middleware.WriteJSON(w, http.StatusOK, JSONResponse{"employee": employee})
	return nil
}

func (h *EmployeeHandler) CreateHandler(w http.ResponseWriter, r *http.Request) error {
	var req CreateEmployeeRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	employee, err := h.creds.CreateEmployee(r.Context(), services.RegisterInput{
		Email:      req.Email,
		Password:   req.Password,
		Name:       req.Name,
		Department: req.Department,
		Position:   req.Position,
	})
	if err != nil {
		if errors.Is(err, services.ErrDuplicateEmail) {
			return middleware.NewAppError(http.StatusBadRequest, "Email already registered", err)
		}
		return inputError(err)
	}
	log.Printf("employee created: user_id=%s", employee.ID)
	middleware.WriteJSON(w, http.StatusCreated, JSONResponse{
		"message":  "Employee created successfully",
		"employee": employee,
	})
	return nil
}

func (h *EmployeeHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) error {
	var req UpdateEmployeeRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	employee, err := h.creds.Update(r.Context(), mux.Vars(r)["id"], services.UpdateInput{
		Email:      req.Email,
		Name:       req.Name,
		Department: req.Department,
		Position:   req.Position,
		Role:       req.Role,
	})
	if err != nil {
		return employeeError(err)
	}
	middleware.WriteJSON(w, http.StatusOK, JSONResponse{
		"message":  "Employee updated successfully",
		"employee": employee,
	})
	return nil
}

func (h *EmployeeHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) error {
	id := mux.Vars(r)["id"]
	if err := h.creds.Delete(r.Context(), id); err != nil {
		return employeeError(err)
	}
	log.Printf("employee deleted: user_id=%s", id)
	middleware.WriteJSON(w, http.StatusOK, JSONResponse{"message": "Employee deleted successfully"})
	return nil
}

func employeeError(err error) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return middleware.NewAppError(http.StatusNotFound, "Employee not found", err)
	case errors.Is(err, services.ErrDuplicateEmail):
		return middleware.NewAppError(http.StatusBadRequest, "Email already in use", err)
	case errors.Is(err, services.ErrInvalidRole):
		return middleware.NewAppError(http.StatusBadRequest, "Invalid role", err)
	}
	return inputError(err)
}
