// Package server exposes a directory.Registry over HTTP with fiber.
package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"groupseal/internal/crypto"
	"groupseal/internal/directory"
	"groupseal/internal/domain"
	"groupseal/internal/logging"
)

const userKey = "user_id"

// Server routes directory requests to a Registry.
type Server struct {
	reg *directory.Registry
	app *fiber.App
}

// New returns a Server for reg with all routes installed.
func New(reg *directory.Registry) *Server {
	s := &Server{
		reg: reg,
		app: fiber.New(fiber.Config{
			DisableStartupMessage: true,
			AppName:               "groupseal-directory",
			ErrorHandler:          errorHandler,
		}),
	}
	s.app.Use(recover.New())
	s.app.Use(requireUser)

	s.app.Post(directory.PathPushPublicKey, s.pushPublicKey)
	s.app.Post(directory.PathGetPublicKeys, s.getPublicKeys)
	s.app.Get(directory.PathChannelMode, s.getChannelMode)
	s.app.Post(directory.PathChannelMode, s.setChannelMode)
	s.app.Post(directory.PathChannelJoin, s.joinChannel)
	s.app.Get(directory.PathChannelMember, s.channelMembers)
	s.app.Get(directory.PathBackupKey, s.backupKey)
	return s
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	logging.New("server", "Listen").WithField("addr", addr).Info("directory listening")
	return s.app.Listen(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error { return s.app.Shutdown() }

// errorHandler renders every error as an ErrorResponse.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	} else {
		logging.New("server", "errorHandler").
			WithField("path", c.Path()).
			WithField("user_id", caller(c)).
			WithError(err, "internal", c.Method()).
			Error("request failed")
	}
	return c.Status(code).JSON(directory.ErrorResponse{Error: err.Error()})
}

func requireUser(c *fiber.Ctx) error {
	user := c.Get(directory.UserHeader)
	if user == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "Not authorized")
	}
	c.Locals(userKey, domain.UserID(user))
	return c.Next()
}

func caller(c *fiber.Ctx) domain.UserID {
	u, _ := c.Locals(userKey).(domain.UserID)
	return u
}

func (s *Server) pushPublicKey(c *fiber.Ctx) error {
	var req directory.PushPublicKeyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	err := s.reg.PushPublicKey(c.UserContext(), caller(c), req.PublicKey, req.BackupGPG)
	switch {
	case errors.Is(err, directory.ErrInvalidPublicKey):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case err != nil:
		return err
	}
	return c.SendStatus(fiber.StatusOK)
}

func (s *Server) getPublicKeys(c *fiber.Ctx) error {
	var req directory.GetPublicKeysRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	users := make([]domain.UserID, len(req.UserIDs))
	for i, u := range req.UserIDs {
		users[i] = domain.UserID(u)
	}
	keys, err := s.reg.PublicKeys(users)
	if err != nil {
		return err
	}
	resp := directory.GetPublicKeysResponse{PublicKeys: make(map[string]*crypto.RawPublicKey, len(keys))}
	for u, k := range keys {
		resp.PublicKeys[string(u)] = k
	}
	return c.JSON(resp)
}

// channel resolves the chanID query parameter and checks membership.
func (s *Server) channel(c *fiber.Ctx) (domain.ChannelID, error) {
	ch := domain.ChannelID(c.Query("chanID"))
	if ch == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, "missing chanID")
	}
	ok, err := s.reg.IsMember(ch, caller(c))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fiber.NewError(fiber.StatusUnauthorized, directory.ErrNotMember.Error())
	}
	return ch, nil
}

func (s *Server) getChannelMode(c *fiber.Ctx) error {
	ch, err := s.channel(c)
	if err != nil {
		return err
	}
	mode, err := s.reg.ChannelMode(ch)
	if err != nil {
		return err
	}
	return c.JSON(directory.ChannelModeResponse{Method: string(mode)})
}

func (s *Server) setChannelMode(c *fiber.Ctx) error {
	ch, err := s.channel(c)
	if err != nil {
		return err
	}
	mode, err := domain.ParseChannelMode(c.Query("method"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	changed, err := s.reg.SetChannelMode(ch, mode)
	if err != nil {
		return err
	}
	return c.JSON(directory.SetChannelModeResponse{Changed: changed})
}

func (s *Server) joinChannel(c *fiber.Ctx) error {
	ch := domain.ChannelID(c.Query("chanID"))
	if ch == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing chanID")
	}
	if err := s.reg.Join(ch, caller(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusOK)
}

func (s *Server) channelMembers(c *fiber.Ctx) error {
	ch, err := s.channel(c)
	if err != nil {
		return err
	}
	members, err := s.reg.Members(ch)
	if err != nil {
		return err
	}
	without, err := s.reg.MembersWithoutKeys(ch)
	if err != nil {
		return err
	}
	return c.JSON(directory.MembersResponse{Members: toStrings(members), WithoutKeys: toStrings(without)})
}

func (s *Server) backupKey(c *fiber.Ctx) error {
	key, err := s.reg.BackupPublicKey(c.UserContext())
	switch {
	case errors.Is(err, directory.ErrBackupDisabled):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case err != nil:
		logging.New("server", "backupKey").WithError(err, "hkp", "lookup").Warn("backup key unavailable")
		return fiber.NewError(fiber.StatusBadGateway, "Unable to get GPG key: "+err.Error())
	}
	return c.JSON(directory.BackupKeyResponse{Key: key})
}

func toStrings(users []domain.UserID) []string {
	out := make([]string, len(users))
	for i, u := range users {
		out[i] = string(u)
	}
	return out
}
