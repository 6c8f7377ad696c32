package dto

type AdminLoginRequest struct {
	Password string `json:"password" validate:"required"`
}

func (r *AdminLoginRequest) Validate() error {
	return GetValidator().Struct(r)
}

type AdminLoginResponse struct {
	Success bool `json:"success"`
}

type AdminSessionResponse struct {
	Admin bool `json:"admin"`
}
