// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the publishing operations for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/mdpub/internal/apperr"
	"github.com/starford/mdpub/internal/catalog"
	"github.com/starford/mdpub/internal/models"
	"github.com/starford/mdpub/internal/publisher"
)

// ContractURI is the resource holding RequestContract.
const ContractURI = "mdpub://publish-request"

// Publisher is the publishing service surface the tools call.
type Publisher interface {
	Publish(ctx context.Context, req *models.PublishRequest, itemID string) ([]publisher.Outcome, error)
	ReplaceMetadata(ctx context.Context, r *models.Record) publisher.Outcome
	Metadata(ctx context.Context, itemID string, replace bool) (json.RawMessage, error)
	Delete(ctx context.Context, itemID, requiredCategory string) (*publisher.DeleteResult, error)
}

// Server wraps the MCP server with the publishing tools.
type Server struct {
	mcp     *server.MCPServer
	pub     Publisher
	catalog catalog.Catalog
}

// New creates a new MCP server with all tools registered.
func New(pub Publisher, c catalog.Catalog, version string) *Server {
	s := &Server{pub: pub, catalog: c}

	s.mcp = server.NewMCPServer(
		"mdpub",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("publish_record",
		mcp.WithDescription("Publish an mdJSON record (and optional related records) into the catalog community. "+
			"Creates the item, updates the matching one or reports it unchanged. "+
			"Read the request contract first via get_request_contract or the "+ContractURI+" resource."),
		mcp.WithString("request", mcp.Required(), mcp.Description("Publish request envelope as JSON")),
		mcp.WithString("item_id", mcp.Description("Catalog id of the item to update (optional)")),
	), s.publishRecord)

	s.mcp.AddTool(mcp.NewTool("replace_metadata",
		mcp.WithDescription("Re-attach an mdJSON record and its ISO renditions to the single matching catalog item without changing anything else."),
		mcp.WithString("mdjson", mcp.Required(), mcp.Description("mdJSON record as JSON")),
	), s.replaceMetadata)

	s.mcp.AddTool(mcp.NewTool("get_metadata",
		mcp.WithDescription("Return the mdJSON record of a catalog item."),
		mcp.WithString("item_id", mcp.Required(), mcp.Description("Catalog item id")),
		mcp.WithBoolean("replace", mcp.Description("Also re-attach the metadata files to the item")),
	), s.getMetadata)

	s.mcp.AddTool(mcp.NewTool("get_item",
		mcp.WithDescription("Read a catalog item as JSON."),
		mcp.WithString("item_id", mcp.Required(), mcp.Description("Catalog item id")),
	), s.getItem)

	s.mcp.AddTool(mcp.NewTool("search_items",
		mcp.WithDescription("Full-text search over catalog item titles and bodies."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search text")),
		mcp.WithString("ancestor_id", mcp.Description("Only return items inside this folder (optional)")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchItems)

	s.mcp.AddTool(mcp.NewTool("delete_item",
		mcp.WithDescription("Delete a catalog item and its whole subtree. The item must be inside the community."),
		mcp.WithString("item_id", mcp.Required(), mcp.Description("Catalog item id")),
		mcp.WithString("kind", mcp.Description(`"project" requires the Project browse category; "product" (default) does not`)),
	), s.deleteItem)

	s.mcp.AddTool(mcp.NewTool("get_request_contract",
		mcp.WithDescription("Returns the publish request contract. Call this before publish_record."),
	), s.getRequestContract)

	s.mcp.AddResource(
		mcp.NewResource(ContractURI, "Publish Request Contract",
			mcp.WithResourceDescription("Shape of the publish request envelope and its mdJSON record."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func toolError(err error) *mcp.CallToolResult {
	out, _ := json.Marshal(map[string][]string{"messages": apperr.MessagesOf(err)})
	return mcp.NewToolResultError(string(out))
}

func toolJSON(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) publishRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body, err := req.RequireString("request")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pr, err := models.DecodePublishRequest([]byte(body))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid request: %v", err)), nil
	}
	outcomes, err := s.pub.Publish(ctx, pr, req.GetString("item_id", ""))
	if err != nil {
		return toolError(err), nil
	}
	res, err := toolJSON(publisher.Summaries(outcomes))
	if err == nil && len(outcomes) > 0 && outcomes[0].Failed() {
		res.IsError = true
	}
	return res, err
}

func (s *Server) replaceMetadata(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body, err := req.RequireString("mdjson")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	r, err := models.ParseRecord(models.Unwrap([]byte(body)))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid mdjson: %v", err)), nil
	}
	out := s.pub.ReplaceMetadata(ctx, r)
	res, err := toolJSON(out.Summary())
	if err == nil && out.Failed() {
		res.IsError = true
	}
	return res, err
}

func (s *Server) getMetadata(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("item_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.pub.Metadata(ctx, id, req.GetBool("replace", false))
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(string(doc)), nil
}

func (s *Server) getItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("item_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	item, err := s.catalog.GetItem(ctx, id, catalog.ItemFields)
	if err != nil {
		return toolError(err), nil
	}
	return toolJSON(item)
}

// searchHit is one search_items result.
type searchHit struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ParentID string `json:"parent_id,omitempty"`
}

func (s *Server) searchItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := req.GetInt("limit", 20)
	res, err := s.catalog.FindItems(ctx, catalog.Query{
		Ancestors: req.GetString("ancestor_id", ""),
		Text:      query,
	})
	if err != nil {
		return toolError(err), nil
	}
	hits := make([]searchHit, 0, len(res.Items))
	for _, it := range res.Items {
		if limit > 0 && len(hits) == limit {
			break
		}
		hits = append(hits, searchHit{ID: it.ID, Title: it.Title, ParentID: it.ParentID})
	}
	return toolJSON(hits)
}

func (s *Server) deleteItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("item_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	category := ""
	switch kind := req.GetString("kind", "product"); kind {
	case "project":
		category = publisher.BrowseCategoryProject
	case "product", "":
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown kind %q", kind)), nil
	}
	res, err := s.pub.Delete(ctx, id, category)
	if err != nil {
		return toolError(err), nil
	}
	return toolJSON(res)
}

func (s *Server) getRequestContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RequestContract), nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ContractURI,
			MIMEType: "text/markdown",
			Text:     RequestContract,
		},
	}, nil
}
