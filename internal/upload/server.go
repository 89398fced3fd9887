package upload

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"regent-connect/internal/data/store"
	"regent-connect/internal/domain"
)

var allowedExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// Server hosts the avatar upload endpoint and serves stored files.
type Server struct {
	app *fiber.App
	kv  *store.KV
	dir string
	log *zap.Logger
}

func NewServer(kv *store.KV, dir string, log *zap.Logger) *Server {
	s := &Server{
		kv:  kv,
		dir: dir,
		log: log.Named("upload"),
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Post("/upload/avatar", s.handleAvatar)
	app.Static("/uploads", dir)

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen blocks serving on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.log.Info("upload server listening", zap.String("addr", addr))
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// handleAvatar accepts a multipart image for a user, stores it under a
// random name, and points the user's avatar at the served path.
func (s *Server) handleAvatar(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.FormValue("user_id"))
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}

	file, err := c.FormFile("profile_picture")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "profile_picture file is required"})
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedExts[ext] {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "only jpg, jpeg, png and gif files are allowed"})
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.log.Error("failed to create upload dir", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "storage unavailable"})
	}

	name := fmt.Sprintf("%s%s", domain.NewID("av"), ext)
	if err := c.SaveFile(file, filepath.Join(s.dir, name)); err != nil {
		s.log.Error("failed to save upload", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to save file"})
	}

	avatarPath := "/uploads/" + name
	if !s.setAvatar(userID, avatarPath) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
	}

	s.log.Info("avatar updated", zap.String("user", userID), zap.String("file", name))
	return c.JSON(fiber.Map{"avatar": avatarPath})
}

func (s *Server) setAvatar(userID, path string) bool {
	users := store.Load(s.kv, store.KeyUsers, []domain.User{})
	found := false
	for i := range users {
		if users[i].ID == userID {
			users[i].AvatarImage = path
			found = true
		}
	}
	if !found {
		return false
	}
	store.Save(s.kv, store.KeyUsers, users)

	current := store.Load(s.kv, store.KeyCurrentUser, (*domain.User)(nil))
	if current != nil && current.ID == userID {
		current.AvatarImage = path
		store.Save(s.kv, store.KeyCurrentUser, current)
	}
	return true
}
