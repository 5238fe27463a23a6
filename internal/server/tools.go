// internal/server/tools.go
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/gin-gonic/gin"

	"nutrilog/internal/logstore"
)

type toolHandler func(context.Context, *protocol.CallToolRequest) (*protocol.CallToolResult, error)

type LogFoodParams struct {
	Description string `json:"description" description:"Free-text food description, e.g. 2 eggs"`
}

type RemoveFoodParams struct {
	ID string `json:"id" description:"Identifier of the logged item"`
}

type ClearLogParams struct {
	Confirm bool `json:"confirm" description:"Must be true to erase the log"`
}

type SuggestFoodsParams struct {
	Partial string `json:"partial" description:"Text to match against logged food names"`
}

// extractParams safely extracts parameters from the request arguments
func extractParams(req *protocol.CallToolRequest, target interface{}) error {
	jsonBytes, err := json.Marshal(req.Arguments)
	if err != nil {
		return fmt.Errorf("failed to marshal arguments: %w", err)
	}

	if err := json.Unmarshal(jsonBytes, target); err != nil {
		return fmt.Errorf("failed to unmarshal parameters: %w", err)
	}

	return nil
}

func (s *NutritionServer) registerTools() {
	s.tools = map[string]toolHandler{
		"log_food":      s.handleLogFood,
		"get_log":       s.handleGetLogTool,
		"remove_food":   s.handleRemoveFood,
		"clear_log":     s.handleClearLog,
		"suggest_foods": s.handleSuggestFoods,
	}
	for name := range s.tools {
		s.log.Debug("registered tool", "tool", name)
	}
}

func (s *NutritionServer) toolNames() []string {
	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *NutritionServer) handleListTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"serverInfo": s.info, "tools": s.toolNames()})
}

func (s *NutritionServer) handleMCP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var request protocol.CallToolRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	handler, ok := s.tools[request.Name]
	if !ok {
		http.Error(w, fmt.Sprintf("Unknown tool: %s", request.Name), http.StatusNotFound)
		return
	}

	result, err := handler(r.Context(), &request)
	if err != nil {
		s.log.Warn("tool call failed", "tool", request.Name, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := json.NewEncoder(w).Encode(result); err != nil {
		s.log.Error("failed to encode response", "error", err)
	}
}

// handleLogFood looks the description up and logs whatever comes back
func (s *NutritionServer) handleLogFood(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params LogFoodParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	if params.Description == "" {
		return nil, fmt.Errorf("food description is required")
	}

	res, err := s.store.Search(context.WithoutCancel(ctx), params.Description)
	if err != nil {
		return nil, fmt.Errorf("failed to log food: %w", err)
	}

	return s.createJSONResponse(map[string]interface{}{
		"result": res,
		"totals": s.store.Totals(),
	})
}

func (s *NutritionServer) handleGetLogTool(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	return s.createJSONResponse(s.view())
}

func (s *NutritionServer) handleRemoveFood(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params RemoveFoodParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	removed, err := s.store.Remove(ctx, params.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to remove food: %w", err)
	}

	return s.createJSONResponse(map[string]interface{}{
		"removed": removed,
		"totals":  s.store.Totals(),
	})
}

func (s *NutritionServer) handleClearLog(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params ClearLogParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	confirm := logstore.Never
	if params.Confirm {
		confirm = logstore.Always
	}
	cleared, err := s.store.ClearAll(ctx, confirm)
	if err != nil {
		return nil, fmt.Errorf("failed to clear log: %w", err)
	}

	return s.createJSONResponse(map[string]interface{}{"cleared": cleared})
}

func (s *NutritionServer) handleSuggestFoods(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params SuggestFoodsParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	return s.createJSONResponse(map[string]interface{}{
		"suggestions": s.store.Suggest(params.Partial),
	})
}

func (s *NutritionServer) createJSONResponse(data interface{}) (*protocol.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: string(jsonBytes),
			},
		},
	}, nil
}
