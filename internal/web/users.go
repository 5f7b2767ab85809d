package web

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/erazemk/tubetes/internal/auth"
	"github.com/erazemk/tubetes/internal/model"
	"github.com/erazemk/tubetes/internal/store"
)

// UsersPage handles GET /users (admin only).
func (s *Server) UsersPage(w http.ResponseWriter, r *http.Request) {
	s.renderUsers(w, r, "", "")
}

func (s *Server) renderUsers(w http.ResponseWriter, r *http.Request, errMsg, success string) {
	users, err := store.ListUsers(r.Context(), s.DB)
	if err != nil {
		slog.Error("failed to list users", "error", err)
	}

	data := &struct {
		PageData
		Users []model.User
		Roles []string
	}{
		PageData: s.page(r, "Usuários"),
		Users:    users,
		Roles:    []string{model.RoleUser, model.RoleManager, model.RoleAdmin},
	}
	data.Error, data.Success = errMsg, success
	s.Templates.Render(w, "users.html", data)
}

// UserCreateSubmit handles POST /users (admin only).
func (s *Server) UserCreateSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())

	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")
	role := r.FormValue("role")

	if username == "" || !model.ValidRole(role) {
		s.renderUsers(w, r, "Informe usuário e perfil.", "")
		return
	}
	if err := model.ValidatePassword(password); err != nil {
		s.renderUsers(w, r, "A senha deve ter pelo menos "+strconv.Itoa(model.MinPasswordLength)+" caracteres.", "")
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		s.renderUsers(w, r, "Erro ao criar usuário.", "")
		return
	}

	if _, err := store.CreateUser(r.Context(), s.DB, username, hash, role); err != nil {
		slog.Warn("user creation failed", "user", claims.Username, "new_user", username, "error", err)
		s.renderUsers(w, r, "Já existe um usuário com esse nome.", "")
		return
	}

	slog.Info("user created", "user", claims.Username, "new_user", username, "role", role)
	http.Redirect(w, r, "/users", http.StatusSeeOther)
}

// UserResetPasswordSubmit handles POST /users/{id}/password (admin only).
func (s *Server) UserResetPasswordSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	target, ok := s.targetUser(w, r)
	if !ok {
		return
	}

	newPassword := r.FormValue("new_password")
	if err := model.ValidatePassword(newPassword); err != nil {
		s.renderUsers(w, r, "A senha deve ter pelo menos "+strconv.Itoa(model.MinPasswordLength)+" caracteres.", "")
		return
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		http.Error(w, "failed to hash password", http.StatusInternalServerError)
		return
	}

	if err := store.UpdateUserPassword(r.Context(), s.DB, target.ID, hash); err != nil {
		slog.Error("failed to reset password", "error", err)
		s.renderUsers(w, r, "Erro ao redefinir a senha.", "")
		return
	}

	slog.Info("user password reset", "user", claims.Username, "target_user", target.Username)
	s.renderUsers(w, r, "", "Senha de "+target.Username+" redefinida.")
}

// UserUpdateRoleSubmit handles POST /users/{id}/role (admin only).
func (s *Server) UserUpdateRoleSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	target, ok := s.targetUser(w, r)
	if !ok {
		return
	}

	role := r.FormValue("role")
	if !model.ValidRole(role) {
		s.renderUsers(w, r, "Perfil inválido.", "")
		return
	}
	if target.Role == model.RoleAdmin && role != model.RoleAdmin && s.lastAdmin(r) {
		s.renderUsers(w, r, "Não é possível remover o último administrador.", "")
		return
	}

	if err := store.UpdateUserRole(r.Context(), s.DB, target.ID, role); err != nil {
		slog.Error("failed to update role", "error", err)
		s.renderUsers(w, r, "Erro ao alterar o perfil.", "")
		return
	}

	slog.Info("user role updated", "user", claims.Username, "target_user", target.Username, "new_role", role)
	http.Redirect(w, r, "/users", http.StatusSeeOther)
}

// UserDeleteSubmit handles POST /users/{id}/delete (admin only).
func (s *Server) UserDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	target, ok := s.targetUser(w, r)
	if !ok {
		return
	}

	if target.ID == claims.UserID {
		s.renderUsers(w, r, "Você não pode excluir o próprio usuário.", "")
		return
	}
	if target.Role == model.RoleAdmin && s.lastAdmin(r) {
		s.renderUsers(w, r, "Não é possível remover o último administrador.", "")
		return
	}

	if err := store.DeleteUser(r.Context(), s.DB, target.ID); err != nil {
		slog.Error("failed to delete user", "error", err)
		s.renderUsers(w, r, "Erro ao excluir usuário.", "")
		return
	}

	slog.Info("user deleted", "user", claims.Username, "deleted_user", target.Username)
	http.Redirect(w, r, "/users", http.StatusSeeOther)
}

func (s *Server) targetUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Redirect(w, r, "/users", http.StatusSeeOther)
		return nil, false
	}
	user, err := store.GetUser(r.Context(), s.DB, id)
	if err != nil {
		slog.Error("failed to get user", "error", err)
	}
	if user == nil || user.DeletedAt != nil {
		s.renderUsers(w, r, "Usuário não encontrado.", "")
		return nil, false
	}
	return user, true
}

// lastAdmin reports whether at most one administrator is left. Errors count
// as true so nothing is removed on a failed check.
func (s *Server) lastAdmin(r *http.Request) bool {
	n, err := store.CountAdmins(r.Context(), s.DB)
	if err != nil {
		slog.Error("failed to count admins", "error", err)
		return true
	}
	return n <= 1
}

// SettingsPage handles GET /settings.
func (s *Server) SettingsPage(w http.ResponseWriter, r *http.Request) {
	data := s.page(r, "Configurações")
	s.Templates.Render(w, "settings.html", &data)
}

// SettingsSubmit handles POST /settings (change own password).
func (s *Server) SettingsSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	render := func(errMsg, success string) {
		data := s.page(r, "Configurações")
		data.Error, data.Success = errMsg, success
		s.Templates.Render(w, "settings.html", &data)
	}

	currentPassword := r.FormValue("current_password")
	newPassword := r.FormValue("new_password")

	if currentPassword == "" || newPassword == "" {
		render("Informe a senha atual e a nova senha.", "")
		return
	}
	if err := model.ValidatePassword(newPassword); err != nil {
		render("A nova senha deve ter pelo menos "+strconv.Itoa(model.MinPasswordLength)+" caracteres.", "")
		return
	}

	user, err := store.GetUser(r.Context(), s.DB, claims.UserID)
	if err != nil || user == nil {
		render("Erro ao carregar o usuário.", "")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, currentPassword) {
		render("Senha atual incorreta.", "")
		return
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		render("Erro ao salvar a senha.", "")
		return
	}
	if err := store.UpdateUserPassword(r.Context(), s.DB, claims.UserID, hash); err != nil {
		slog.Error("failed to update password", "error", err)
		render("Erro ao salvar a senha.", "")
		return
	}

	slog.Info("user changed own password", "user", claims.Username)
	render("", "Senha alterada com sucesso.")
}
