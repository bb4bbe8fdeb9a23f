// tests/e2e/settlement_flow_test.go
//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
)

// Requires a running server with seeded bank details for campus e2e-campus-1.
func TestConfigureGatewayE2E(t *testing.T) {
	baseURL := "http://localhost:8080"

	payload := map[string]interface{}{
		"enabled":        true,
		"mode":           "test",
		"key_id":         "rzp_test_e2e",
		"key_secret":     "e2e_secret_value",
		"webhook_secret": "e2e_webhook_secret",
	}
	jsonData, _ := json.Marshal(payload)

	resp, err := http.Post(
		baseURL+"/api/v1/campuses/e2e-campus-1/gateways/razorpay",
		"application/json",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		t.Fatalf("Failed to configure gateway: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	config, ok := result["configuration"].(map[string]interface{})
	if !ok {
		t.Fatal("Response doesn't contain configuration object")
	}
	rzp, ok := config["razorpay"].(map[string]interface{})
	if !ok {
		t.Fatal("Response doesn't contain razorpay entry")
	}
	if rzp["key_secret"] == "e2e_secret_value" {
		t.Error("Response leaked the unmasked key secret")
	}
}

func TestProcessSettlementE2E(t *testing.T) {
	baseURL := "http://localhost:8080"

	payload := map[string]interface{}{"gateway": "razorpay"}
	jsonData, _ := json.Marshal(payload)

	resp, err := http.Post(
		baseURL+"/api/v1/campuses/e2e-campus-1/settlements",
		"application/json",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		t.Fatalf("Failed to process settlement: %v", err)
	}
	defer resp.Body.Close()

	// A fresh environment has no eligible transactions; both the created and
	// the no-eligible outcomes are acceptable here.
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("Expected status 201 or 422, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	t.Logf("Settlement run result: %v", result)
}
