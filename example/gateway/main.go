// Example: Using the bhsql gateway
//
// This example sends statements to the HTTP gateway, which rewrites them for
// ByteHouse before dispatch. It is useful for tools that cannot link the Go
// packages directly.
//
// Start the gateway:
//
//	go run ./cmd/bhsql serve --profile bytehouse.yaml
//
// Then run this example:
//
//	go run ./example/gateway
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
)

var baseURL = getBaseURL()

func getBaseURL() string {
	host := os.Getenv("BHSQL_GATEWAY")
	if host == "" {
		host = "localhost:8080"
	}
	return fmt.Sprintf("http://%s", host)
}

// StatementRequest is the body of POST /v1/statements.
type StatementRequest struct {
	SQL   string `json:"sql"`
	Fetch bool   `json:"fetch,omitempty"`
}

// StatementResponse is the gateway envelope.
type StatementResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Code    string         `json:"code,omitempty"`
	Data    *StatementData `json:"data,omitempty"`
}

// StatementData carries the result of one statement.
type StatementData struct {
	QueryID   string   `json:"queryId"`
	Status    string   `json:"status"`
	ElapsedMs int64    `json:"elapsedMs"`
	Columns   []Column `json:"columns"`
	Rows      [][]any  `json:"rows"`
	Scalar    any      `json:"scalar,omitempty"`
}

// Column describes a result column.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

func main() {
	fmt.Println("=== bhsql gateway example ===")

	// MergeTree is rewritten to CnchMergeTree before it reaches the engine.
	fmt.Println("\n1. Creating table 'products'...")
	if _, err := execute(`
		CREATE TABLE IF NOT EXISTS products (
			id Int32,
			name String,
			price Float32
		) ENGINE = MergeTree() ORDER BY id
	`, false); err != nil {
		log.Fatalf("Failed to create table: %v", err)
	}
	fmt.Println("   Table created")

	fmt.Println("\n2. Inserting sample data...")
	if _, err := execute(`
		INSERT INTO products VALUES
		(1, 'Laptop', 999.99),
		(2, 'Mouse', 29.99),
		(3, 'Monitor', 299.99)
	`, false); err != nil {
		log.Fatalf("Failed to insert data: %v", err)
	}
	fmt.Println("   3 rows inserted")

	fmt.Println("\n3. Creating view 'premium_products'...")
	if _, err := execute(`CREATE VIEW IF NOT EXISTS premium_products AS
		SELECT name, price FROM products WHERE price > 100`, false); err != nil {
		log.Fatalf("Failed to create view: %v", err)
	}

	// The engine cannot rename views; the gateway recreates it under the new name.
	fmt.Println("\n4. Renaming view...")
	if _, err := execute("RENAME TABLE premium_products TO expensive_products", false); err != nil {
		log.Fatalf("Failed to rename view: %v", err)
	}

	fmt.Println("\n5. Querying renamed view...")
	resp, err := execute("SELECT name, price FROM expensive_products ORDER BY price DESC", true)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	printResponse(resp)

	fmt.Println("\n6. Counting rows...")
	resp, err = execute("SELECT count() FROM products", false)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	fmt.Printf("   count = %v\n", resp.Data.Scalar)

	fmt.Println("\n7. Cleaning up...")
	for _, sql := range []string{"DROP TABLE IF EXISTS expensive_products", "DROP TABLE IF EXISTS products"} {
		if _, err := execute(sql, false); err != nil {
			log.Printf("Warning: %v", err)
		}
	}

	fmt.Println("\n=== Example completed ===")
}

func execute(sql string, fetch bool) (*StatementResponse, error) {
	body, err := json.Marshal(StatementRequest{SQL: sql, Fetch: fetch})
	if err != nil {
		return nil, err
	}

	resp, err := http.Post(baseURL+"/v1/statements", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result StatementResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w (body: %s)", err, raw)
	}
	if !result.Success {
		return nil, fmt.Errorf("%s: %s", result.Code, result.Message)
	}
	return &result, nil
}

func printResponse(resp *StatementResponse) {
	if resp.Data == nil {
		return
	}
	for _, c := range resp.Data.Columns {
		fmt.Printf("   %-15s", c.Name)
	}
	fmt.Println()
	for _, row := range resp.Data.Rows {
		for _, v := range row {
			fmt.Printf("   %-15v", v)
		}
		fmt.Println()
	}
	fmt.Printf("   (%d rows, %d ms)\n", len(resp.Data.Rows), resp.Data.ElapsedMs)
}
