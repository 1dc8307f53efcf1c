package controllers

import (
	"errors"

	"github.com/appforge/connectorhub/pkg/domain"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

// ConnectorController exposes the registry over HTTP. Identity resolution is
// the caller's problem; userID and projectID arrive as path parameters.
type ConnectorController struct {
	registry    domain.ConnectorRegistry
	connections domain.ConnectionManager
	gateway     domain.ResourceGateway
}

type ConnectorControllerDependencies struct {
	Registry          domain.ConnectorRegistry
	ConnectionManager domain.ConnectionManager
	ResourceGateway   domain.ResourceGateway
}

func NewConnectorController(deps ConnectorControllerDependencies) *ConnectorController {
	return &ConnectorController{
		registry:    deps.Registry,
		connections: deps.ConnectionManager,
		gateway:     deps.ResourceGateway,
	}
}

func (c *ConnectorController) ListConnectors(ctx fiber.Ctx) error {
	return ctx.JSON(fiber.Map{
		"personal": c.registry.ListPersonal(),
		"shared":   c.registry.ListShared(),
	})
}

type startAuthorizationRequest struct {
	RedirectURI string `json:"redirect_uri"`
}

func (c *ConnectorController) StartAuthorization(ctx fiber.Ctx) error {
	var req startAuthorizationRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if req.RedirectURI == "" {
		return fiber.NewError(fiber.StatusBadRequest, "redirect_uri is required")
	}

	request, err := c.connections.StartAuthorization(
		ctx.RequestCtx(),
		ctx.Params("userID"),
		domain.ConnectorKey(ctx.Params("connectorKey")),
		req.RedirectURI,
	)
	if err != nil {
		return mapDomainError(err)
	}

	return ctx.JSON(request)
}

type completeAuthorizationRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

func (c *ConnectorController) CompleteAuthorization(ctx fiber.Ctx) error {
	var req completeAuthorizationRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if req.Code == "" || req.State == "" {
		return fiber.NewError(fiber.StatusBadRequest, "code and state are required")
	}

	connection, err := c.connections.CompleteAuthorization(ctx.RequestCtx(), req.Code, req.State)
	if err != nil {
		return mapDomainError(err)
	}

	// The encrypted envelope stays server-side.
	return ctx.JSON(fiber.Map{
		"connector_key": connection.ConnectorKey,
		"user_id":       connection.UserID,
		"expires_at":    connection.ExpiresAt,
		"scope":         connection.Scope,
	})
}

func (c *ConnectorController) RevokeConnection(ctx fiber.Ctx) error {
	err := c.connections.RevokeConnection(
		ctx.RequestCtx(),
		ctx.Params("userID"),
		domain.ConnectorKey(ctx.Params("connectorKey")),
	)
	if err != nil {
		return mapDomainError(err)
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}

func (c *ConnectorController) QueryPersonalResources(ctx fiber.Ctx) error {
	page, err := c.gateway.QueryPersonalResources(
		ctx.RequestCtx(),
		ctx.Params("userID"),
		domain.ConnectorKey(ctx.Params("connectorKey")),
		resourceQueryFromRequest(ctx),
	)
	if err != nil {
		return mapDomainError(err)
	}

	return ctx.JSON(page)
}

type configureSharedRequest struct {
	Credential string `json:"credential"`
}

func (c *ConnectorController) ConfigureSharedConnection(ctx fiber.Ctx) error {
	var req configureSharedRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if req.Credential == "" {
		return fiber.NewError(fiber.StatusBadRequest, "credential is required")
	}

	connection, err := c.connections.ConfigureSharedConnection(
		ctx.RequestCtx(),
		ctx.Params("projectID"),
		domain.ConnectorKey(ctx.Params("connectorKey")),
		req.Credential,
	)
	if err != nil {
		return mapDomainError(err)
	}

	return ctx.JSON(fiber.Map{
		"connector_key": connection.ConnectorKey,
		"project_id":    connection.ProjectID,
		"created_at":    connection.CreatedAt,
		"updated_at":    connection.UpdatedAt,
	})
}

func (c *ConnectorController) RemoveSharedConnection(ctx fiber.Ctx) error {
	err := c.connections.RemoveSharedConnection(
		ctx.RequestCtx(),
		ctx.Params("projectID"),
		domain.ConnectorKey(ctx.Params("connectorKey")),
	)
	if err != nil {
		return mapDomainError(err)
	}

	return ctx.SendStatus(fiber.StatusNoContent)
}

func (c *ConnectorController) QuerySharedResources(ctx fiber.Ctx) error {
	page, err := c.gateway.QuerySharedResources(
		ctx.RequestCtx(),
		ctx.Params("projectID"),
		domain.ConnectorKey(ctx.Params("connectorKey")),
		resourceQueryFromRequest(ctx),
	)
	if err != nil {
		return mapDomainError(err)
	}

	return ctx.JSON(page)
}

func resourceQueryFromRequest(ctx fiber.Ctx) domain.ResourceQuery {
	return domain.ResourceQuery{
		Search: fiber.Query[string](ctx, "search"),
		Cursor: fiber.Query[string](ctx, "cursor"),
		Limit:  fiber.Query[int](ctx, "limit"),
	}
}

// mapDomainError translates the error taxonomy into HTTP statuses without
// leaking provider bodies or credential material.
func mapDomainError(err error) error {
	switch {
	case errors.Is(err, domain.ErrConnectorNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNotAuthorized), errors.Is(err, domain.ErrInvalidState):
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrDecryptionFailed):
		log.Error().Err(err).Msg("Credential decryption failed")
		return fiber.NewError(fiber.StatusInternalServerError, "credential decryption failed")
	}

	var validationErr *domain.CredentialValidationError
	if errors.As(err, &validationErr) {
		return fiber.NewError(fiber.StatusUnprocessableEntity, validationErr.Error())
	}

	var exchangeErr *domain.TokenExchangeError
	if errors.As(err, &exchangeErr) {
		return fiber.NewError(fiber.StatusBadGateway, exchangeErr.Error())
	}

	var refreshErr *domain.TokenRefreshError
	if errors.As(err, &refreshErr) {
		// The connection was invalidated; the caller should re-authorize.
		return fiber.NewError(fiber.StatusUnauthorized, refreshErr.Error())
	}

	var queryErr *domain.ResourceQueryError
	if errors.As(err, &queryErr) {
		return fiber.NewError(fiber.StatusBadGateway, queryErr.Error())
	}

	log.Error().Err(err).Msg("Unhandled registry error")

	return fiber.NewError(fiber.StatusInternalServerError, "internal error")
}
