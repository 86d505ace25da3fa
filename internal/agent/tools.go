package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/voxlane/voice-platform/internal/adapters/googleauth"
	"github.com/voxlane/voice-platform/internal/domain"
	"github.com/voxlane/voice-platform/internal/tools"
	"github.com/voxlane/voice-platform/pkg/logger"
)

// realtimeTools converts the agent's enabled tool set into the function
// definitions the model receives. Server-side capability checks still apply
// when a tool is invoked.
func realtimeTools(resolved *domain.ResolvedAgent) []interface{} {
	annotated := tools.ForAgent(resolved.EnabledTools, true, resolved.KnowledgeBaseEnabled)

	var defs []interface{}
	for _, tool := range annotated {
		if !tool.Enabled {
			continue
		}
		defs = append(defs, map[string]interface{}{
			"type":        "function",
			"name":        tool.Name,
			"description": tool.Description,
			"parameters":  tool.Parameters,
		})
	}
	return defs
}

// dispatchTool executes one function call and returns the string result
// handed back to the model. Errors become spoken-friendly failures rather
// than session aborts.
func (s *Session) dispatchTool(ctx context.Context, name, rawArgs string) string {
	var args map[string]interface{}
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			logger.L().Warn("bad tool arguments",
				zap.String("tool", name), zap.Error(err))
			return "The tool call had invalid arguments."
		}
	}

	switch name {
	case tools.ToolEndCall:
		reason, _ := args["reason"].(string)
		s.requestHangup(reason)
		return "The call is ending. Say goodbye."

	case tools.ToolKnowledgeLookup:
		return s.lookupKnowledge(ctx, args)

	case tools.ToolCalendarRead:
		return s.readCalendar(ctx, args)

	case tools.ToolCalendarCreate:
		return s.createCalendarEvent(ctx, args)

	case tools.ToolWebSearch:
		return s.webSearch(ctx, args)

	default:
		logger.L().Warn("unknown tool requested", zap.String("tool", name))
		return fmt.Sprintf("The tool %q is not available.", name)
	}
}

func (s *Session) lookupKnowledge(ctx context.Context, args map[string]interface{}) string {
	query, _ := args["query"].(string)
	if query == "" {
		return "No query was provided."
	}

	chunks, err := s.api.QueryKnowledge(ctx, s.resolved.AgentID, query, 3)
	if err != nil {
		logger.L().Warn("knowledge lookup failed", zap.Error(err))
		return "The knowledge base is not reachable right now."
	}
	if len(chunks) == 0 {
		return "The knowledge base has no information about that."
	}

	var b strings.Builder
	for i, chunk := range chunks {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		b.WriteString(chunk.Text)
	}
	return b.String()
}

func (s *Session) readCalendar(ctx context.Context, args map[string]interface{}) string {
	max := 5
	if days, ok := args["days_ahead"].(float64); ok && days > 7 {
		max = 10
	}

	events, err := s.api.ListCalendarEvents(ctx, s.resolved.OwnerID, max)
	if err != nil {
		logger.L().Warn("calendar read failed", zap.Error(err))
		return "The calendar could not be read. The owner may not have connected their Google account."
	}
	if len(events) == 0 {
		return "There are no upcoming events on the calendar."
	}

	var b strings.Builder
	b.WriteString("Upcoming events:\n")
	for _, event := range events {
		fmt.Fprintf(&b, "- %s at %s\n", event.Summary, event.Start.DateTime)
	}
	return b.String()
}

func (s *Session) createCalendarEvent(ctx context.Context, args map[string]interface{}) string {
	title, _ := args["title"].(string)
	start, _ := args["start"].(string)
	end, _ := args["end"].(string)
	if title == "" || start == "" || end == "" {
		return "A title, start time and end time are all required."
	}

	created, err := s.api.CreateCalendarEvent(ctx, s.resolved.OwnerID, &googleauth.CalendarEvent{
		Summary: title,
		Start:   googleauth.CalendarTime{DateTime: start},
		End:     googleauth.CalendarTime{DateTime: end},
	})
	if err != nil {
		logger.L().Warn("calendar create failed", zap.Error(err))
		return "The event could not be created. The owner may not have connected their Google account."
	}

	return fmt.Sprintf("Created the event %q starting %s.", created.Summary, created.Start.DateTime)
}

// webSearch answers through the DuckDuckGo instant answer API, which needs
// no credentials.
func (s *Session) webSearch(ctx context.Context, args map[string]interface{}) string {
	query, _ := args["query"].(string)
	if query == "" {
		return "No search query was provided."
	}

	reqCtx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()

	searchURL := "https://api.duckduckgo.com/?format=json&no_html=1&q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "The web search could not be started."
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		logger.L().Warn("web search failed", zap.Error(err))
		return "The web search is not reachable right now."
	}
	defer resp.Body.Close()

	var result struct {
		AbstractText  string `json:"AbstractText"`
		Answer        string `json:"Answer"`
		RelatedTopics []struct {
			Text string `json:"Text"`
		} `json:"RelatedTopics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "The web search returned an unreadable result."
	}

	switch {
	case result.Answer != "":
		return result.Answer
	case result.AbstractText != "":
		return result.AbstractText
	case len(result.RelatedTopics) > 0 && result.RelatedTopics[0].Text != "":
		return result.RelatedTopics[0].Text
	default:
		return "The search found nothing useful."
	}
}
