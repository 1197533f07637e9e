/*
Package authsdk provides a client SDK for the projectx authentication API and
the wire types shared with the server.

# SDKClient

An SDKClient behaves like a browser: it holds the httpOnly session cookie in
its own cookie jar and sends it on every request. Create one client per
session:

	client := authsdk.NewSDKClient("https://api.example.com")

	res, err := client.Login(ctx, "ada@example.com", "password")
	if err != nil {
		return err
	}
	if res.Pending() {
		// The code was emailed to the user.
		res, err = client.VerifyTwoFactor(ctx, res.UserID, code)
		if err != nil {
			return err
		}
	}

	me, err := client.Me(ctx)

The token itself never appears in a response body; SessionCookie exposes the
jar entry for tests.

# Error Handling

Every non-2xx response is returned as an *APIError carrying the HTTP status,
the machine-readable error_code and the server's message. The predefined
errors match with errors.Is on status and code:

	_, err := client.Login(ctx, email, "wrong")
	if errors.Is(err, authsdk.ErrInvalidCredentials) {
		// 401 INVALID_CREDENTIALS
	}

The server writes the same values with APIError.WriteError, so both sides
agree on the shape:

	{"success": false, "message": "...", "timestamp": "...", "error_code": "..."}

# Thread Safety

An SDKClient is safe for concurrent use, but all goroutines share one session.
*/
package authsdk
