package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/lumarank/lumarank/internal/llm"
	llmmocks "github.com/lumarank/lumarank/internal/llm/mocks"
	"github.com/lumarank/lumarank/internal/model"
	"github.com/lumarank/lumarank/internal/resilience"
)

const acmeAnswer = "Acme is the leading platform for this job. Acme offers features like live dashboards, " +
	"transparent pricing with a flat monthly subscription price, strong reviews and ratings from customers, " +
	"and a product comparison page that lays out the benefits of the service over every other solution."

func stage(name string) any {
	return mock.MatchedBy(func(r llm.Request) bool { return r.Stage == name })
}

func completion(text string) *llm.Completion {
	return &llm.Completion{Text: text, Latency: time.Millisecond}
}

func companyJSON(name string) string {
	b, _ := json.Marshal(map[string]any{
		"name":                   name,
		"description":            "Acme builds analytics dashboards for SaaS teams.",
		"ideal_customer_profile": "Product and growth teams at B2B SaaS companies",
		"key_features":           []string{"Dashboards", "Alerts", "Cohorts"},
		"pricing_info":           "From $49/month",
		"industry":               "Software",
	})
	return string(b)
}

func questionsJSON(company string, n int) string {
	topics := []string{"pricing", "reviews", "features"}
	var cs, pb []map[string]string
	for i := 0; i < n; i++ {
		cs = append(cs, map[string]string{
			"question": fmt.Sprintf("What are %s %s like (%d)?", company, topics[i%len(topics)], i),
			"intent":   "evaluate",
		})
		pb = append(pb, map[string]string{
			"question": fmt.Sprintf("What is the best analytics tool for SaaS teams (%d)?", i),
			"intent":   "discover",
		})
	}
	b, _ := json.Marshal(map[string]any{"company_specific": cs, "problem_based": pb})
	return string(b)
}

func fastPolicy(name string, attempts int) resilience.Policy {
	return resilience.NewPolicy(name, attempts, time.Millisecond, 2*time.Millisecond)
}

func fastPolicies() Policies {
	return Policies{
		Fetch:    fastPolicy("fetch", 3),
		Extract:  fastPolicy("extract", 3).WithRetryable(retryMalformed),
		Generate: fastPolicy("generate", 3).WithRetryable(retryMalformed),
		Test:     fastPolicy("test", 2),
	}
}

func testSession() model.SessionContext {
	return model.SessionContext{
		User:       model.User{ID: "11111111-1111-1111-1111-111111111111", Email: "ada@example.com", IsActive: true},
		Entity:     model.Entity{ID: "22222222-2222-2222-2222-222222222222", Name: "Analytical Engines", IsActive: true},
		Membership: model.Membership{Role: model.RoleMember, IsActive: true},
		RequestID:  "req_0123456789ab",
	}
}

func newMockLLM(t interface {
	mock.TestingT
	Cleanup(func())
}) *llmmocks.MockProvider {
	return llmmocks.NewMockProvider(t)
}

