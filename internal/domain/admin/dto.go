package admin

// LoginRequest is the admin login payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginResponse carries the issued access token
type LoginResponse struct {
	Token string `json:"token"`
	Admin *User  `json:"admin"`
}

// UpdateConfigRequest mutates the runtime system configuration.
// Pointer fields distinguish "leave unchanged" from explicit values.
type UpdateConfigRequest struct {
	AIEnabled         *bool `json:"aiEnabled"`
	DailyLimitPerUser *int  `json:"dailyLimitPerUser" validate:"omitempty,gte=0,lte=10000"`
	MaintenanceMode   *bool `json:"maintenanceMode"`
}
