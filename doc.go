// Package miktos implements a client for the Miktos text generation API.
//
// A Client authenticates with a bearer token, manages projects and
// generates text, either as a single JSON result or as a stream of raw text
// chunks:
//
//	c := miktos.NewClient(os.Getenv("MIKTOS_API_KEY"))
//
//	err := c.StreamText(ctx, &miktos.GenerateTextRequest{
//		ProjectID: projectID,
//		Model:     miktos.ModelClaude3Opus,
//		Messages: []miktos.Message{
//			{Role: miktos.ChatRoleUser, Content: "Write a short poem about AI."},
//		},
//	}, func(chunk string) error {
//		fmt.Print(chunk)
//		return nil
//	})
//
// Requests are never retried. Any non-2xx response is returned as a
// [*RequestError] carrying the status code.
package miktos
