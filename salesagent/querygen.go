package salesagent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/salesagent-go/agent/model"
)

// productsTableInfo describes the catalog schema for query generation.
const productsTableInfo = `CREATE TABLE products (
	ProductId INTEGER PRIMARY KEY AUTOINCREMENT,
	ProductName TEXT NOT NULL UNIQUE, -- stored lower-cased
	Category TEXT NOT NULL,
	Description TEXT NOT NULL,
	Price REAL NOT NULL,
	Quantity INTEGER NOT NULL
)`

// QueryGenerator turns a natural-language product question into a SQL
// SELECT statement.
type QueryGenerator interface {
	// GenerateQuery produces a single SELECT statement answering the
	// question against the described table.
	GenerateQuery(ctx context.Context, dialect, tableInfo, question string) (string, error)
}

// ModelQueryGenerator implements QueryGenerator over any ChatModel.
type ModelQueryGenerator struct {
	Model model.ChatModel
}

const queryGenPrompt = `Given an input question, create a syntactically correct %s query to run to help find the answer.
Unless the question specifies a number of results, limit your query to at most 10 rows.
Never query for all the columns from a table, only ask for the few relevant columns given the question.
Only use the columns from the table below. Only produce a single SELECT statement, nothing else.

Table:
%s

Question: %s`

// GenerateQuery implements QueryGenerator. The model's reply is
// stripped of markdown fences and validated to start with SELECT.
func (g *ModelQueryGenerator) GenerateQuery(ctx context.Context, dialect, tableInfo, question string) (string, error) {
	if g.Model == nil {
		return "", errors.New("query generator requires a chat model")
	}

	out, err := g.Model.Chat(ctx, []model.Message{
		{Role: model.RoleUser, Content: fmt.Sprintf(queryGenPrompt, dialect, tableInfo, question)},
	}, nil)
	if err != nil {
		return "", fmt.Errorf("query generation failed: %w", err)
	}

	query := stripCodeFences(out.Text)
	if query == "" {
		return "", errors.New("query generation produced no output")
	}
	if !strings.HasPrefix(strings.ToUpper(query), "SELECT") {
		return "", fmt.Errorf("generated query is not a SELECT statement: %s", query)
	}
	return query, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```sql")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
