package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ersonp/menu-core/internal/domain/entities"
	"github.com/ersonp/menu-core/internal/domain/services"
)

// Standard menus

type standardMenuRequest struct {
	Name        *string `json:"name"`
	Category    *string `json:"category"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

type aliasRequest struct {
	Alias string `json:"alias"`
}

func (s *Server) listStandardMenus(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	entries, err := s.svc.Catalog.List(c.Request.Context(), activeOnly)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"standard_menus": nonNil(entries)})
}

func (s *Server) createStandardMenu(c *gin.Context) {
	var input services.CatalogInput
	if !bindJSON(c, &input) {
		return
	}
	entry, err := s.svc.Catalog.Create(c.Request.Context(), input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (s *Server) popularStandardMenus(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}
	entries, err := s.svc.Catalog.Popular(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"standard_menus": nonNil(entries)})
}

func (s *Server) getStandardMenu(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	entry, err := s.svc.Catalog.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *Server) updateStandardMenu(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req standardMenuRequest
	if !bindJSON(c, &req) {
		return
	}
	entry, err := s.svc.Catalog.Update(c.Request.Context(), id, entities.StandardMenuUpdate{
		Name:        req.Name,
		Category:    req.Category,
		Description: req.Description,
		IsActive:    req.IsActive,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *Server) deleteStandardMenu(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.svc.Catalog.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) addAlias(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req aliasRequest
	if !bindJSON(c, &req) {
		return
	}
	entry, err := s.svc.Catalog.AddAlias(c.Request.Context(), id, req.Alias)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *Server) removeAlias(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	entry, err := s.svc.Catalog.RemoveAlias(c.Request.Context(), id, c.Param("alias"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// Restaurants

type restaurantRequest struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
	Category string `json:"category"`
}

func (s *Server) listRestaurants(c *gin.Context) {
	list, err := s.svc.Restaurants.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"restaurants": nonNil(list)})
}

func (s *Server) createRestaurant(c *gin.Context) {
	var req restaurantRequest
	if !bindJSON(c, &req) {
		return
	}
	r, err := s.svc.Restaurants.Create(c.Request.Context(), entities.Restaurant{
		Name:     req.Name,
		Address:  req.Address,
		Phone:    req.Phone,
		Category: req.Category,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (s *Server) restaurantMenus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	items, err := s.svc.Restaurants.Menu(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"menus": nonNil(items)})
}

// Menu items

// patchMenuRequest edits raw fields and/or the match of an item.
// A standard_menu with match_method "manual" (or no method) applies an
// override; match_method "none" clears the match.
type patchMenuRequest struct {
	OriginalName *string `json:"original_name"`
	Price        *int64  `json:"price"`
	Description  *string `json:"description"`
	StandardMenu *int64  `json:"standard_menu"`
	MatchMethod  *string `json:"match_method"`
	IsVerified   *bool   `json:"is_verified"`
}

type matchRequest struct {
	Force bool `json:"force"`
}

type batchMatchRequest struct {
	IDs   []int64 `json:"ids"`
	Force bool    `json:"force"`
}

type rematchRequest struct {
	Limit int `json:"limit"`
}

type previewRequest struct {
	Name string `json:"name"`
}

func (s *Server) createMenuItem(c *gin.Context) {
	var input entities.MenuItemInput
	if !bindJSON(c, &input) {
		return
	}
	item, res, err := s.svc.Menus.Create(c.Request.Context(), input)
	if item == nil {
		writeError(c, err)
		return
	}

	body := gin.H{"menu": item, "match": res}
	if err != nil {
		// The item is stored even when matching failed.
		_ = c.Error(err)
		body["match_error"] = errorBody(err)
	}
	c.JSON(http.StatusCreated, body)
}

func (s *Server) getMenuItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	item, err := s.svc.Menus.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) patchMenuItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req patchMenuRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	method := ""
	if req.MatchMethod != nil {
		method = strings.ToLower(*req.MatchMethod)
	}
	switch {
	case method == "" && req.StandardMenu != nil:
		method = string(entities.MatchManual)
	case method == string(entities.MatchManual) && req.StandardMenu == nil:
		writeError(c, entities.ValidationErrorf("standard_menu is required for a manual match"))
		return
	case method != "" && method != string(entities.MatchManual) && method != string(entities.MatchNone):
		writeError(c, entities.ValidationErrorf("match_method must be manual or none, got %q", method))
		return
	}
	if method == string(entities.MatchManual) && req.IsVerified != nil && !*req.IsVerified {
		writeError(c, entities.ValidationErrorf("manual matches are always verified"))
		return
	}

	if req.OriginalName != nil || req.Price != nil || req.Description != nil {
		_, err := s.svc.Menus.Update(ctx, id, entities.MenuItemUpdate{
			Name:        req.OriginalName,
			Price:       req.Price,
			Description: req.Description,
		})
		if err != nil {
			writeError(c, err)
			return
		}
	}

	var err error
	switch method {
	case string(entities.MatchManual):
		_, err = s.svc.Matcher.ApplyManualMatch(ctx, id, *req.StandardMenu, actor(c))
	case string(entities.MatchNone):
		_, err = s.svc.Matcher.ClearMatch(ctx, id, actor(c))
	}
	if err != nil {
		writeError(c, err)
		return
	}

	item, err := s.svc.Menus.Get(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) deleteMenuItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.svc.Menus.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) matchMenuItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req matchRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	res, err := s.svc.Matcher.AttemptAutomaticMatch(c.Request.Context(), id, services.MatchOptions{Force: req.Force})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) menuItemHistory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	history, err := s.svc.Menus.History(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": nonNil(history)})
}

func (s *Server) batchMatch(c *gin.Context) {
	var req batchMatchRequest
	if !bindJSON(c, &req) {
		return
	}
	if len(req.IDs) == 0 {
		writeError(c, entities.ValidationErrorf("ids must not be empty"))
		return
	}
	results, err := s.svc.Menus.BatchMatch(c.Request.Context(), req.IDs, services.MatchOptions{Force: req.Force})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (s *Server) rematchUnmatched(c *gin.Context) {
	var req rematchRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	limit, ok := queryInt(c, "limit", req.Limit)
	if !ok {
		return
	}
	summary, err := s.svc.Menus.RematchUnmatched(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) preview(c *gin.Context) {
	var req previewRequest
	if !bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(c, entities.ValidationErrorf("name is required"))
		return
	}
	res, err := s.svc.Menus.Preview(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Ledger

func (s *Server) listOverrides(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 0)
	if !ok {
		return
	}
	filter := entities.LedgerFilter{Limit: limit}
	if raw := c.Query("menu_item_id"); raw != "" {
		itemID, ok := queryInt(c, "menu_item_id", 0)
		if !ok {
			return
		}
		id := int64(itemID)
		filter.MenuItemID = &id
	}
	list, err := s.svc.Ledger.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"overrides": nonNil(list)})
}

func (s *Server) aliasSuggestions(c *gin.Context) {
	minOccurrences, ok := queryInt(c, "min", 0)
	if !ok {
		return
	}
	list, err := s.svc.Ledger.SuggestAliases(c.Request.Context(), minOccurrences)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": nonNil(list)})
}

// nonNil keeps empty lists rendering as [] rather than null.
func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
