package mailer

import "fmt"

// OTPSubject is the subject line for login code email.
const OTPSubject = "FixIt Admin Login - Your OTP Code"

// OTPEmailHTML renders the login code email. Inline styles only, for client
// compatibility. The plaintext code appears nowhere else.
func OTPEmailHTML(name, code string, expiryMinutes int) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
  <head>
    <style>
      body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
      .container { max-width: 600px; margin: 0 auto; padding: 20px; }
      .header { background-color: #4F46E5; color: white; padding: 20px; text-align: center; border-radius: 8px 8px 0 0; }
      .content { background-color: #f9fafb; padding: 30px; border-radius: 0 0 8px 8px; }
      .otp-box { background-color: white; border: 2px solid #4F46E5; border-radius: 8px; padding: 20px; text-align: center; margin: 20px 0; }
      .otp-code { font-size: 32px; font-weight: bold; letter-spacing: 8px; color: #4F46E5; }
      .warning { background-color: #FEF3C7; border-left: 4px solid #F59E0B; padding: 12px; margin: 20px 0; }
      .footer { text-align: center; color: #6b7280; font-size: 12px; margin-top: 20px; }
    </style>
  </head>
  <body>
    <div class="container">
      <div class="header">
        <h1>FixIt Admin Portal</h1>
      </div>
      <div class="content">
        <h2>Your Login Code</h2>
        <p>Hello %s,</p>
        <p>Use the following One-Time Password (OTP) to complete your login:</p>
        <div class="otp-box">
          <div class="otp-code">%s</div>
        </div>
        <p><strong>This code will expire in %d minutes.</strong></p>
        <div class="warning">
          <strong>Security Notice:</strong>
          <ul style="margin: 10px 0; padding-left: 20px;">
            <li>Never share this code with anyone</li>
            <li>FixIt staff will never ask for your OTP</li>
            <li>If you didn't request this code, please ignore this email</li>
          </ul>
        </div>
        <p>If you're having trouble logging in, please contact support.</p>
      </div>
      <div class="footer">
        <p>This is an automated message, please do not reply.</p>
      </div>
    </div>
  </body>
</html>`, name, code, expiryMinutes)
}
