package templates

import (
	"fmt"
	"html"
	"strings"
)

// RenderGenericEmail generates branded HTML for a generic email.
// The subject is displayed in the header banner, and bodyContent is plain text
// that gets HTML-escaped and has newlines converted to <br> tags.
func RenderGenericEmail(subject, bodyContent string) string {
	// HTML-escape the body to prevent injection, then convert newlines to <br>
	escaped := html.EscapeString(bodyContent)
	htmlBody := strings.ReplaceAll(escaped, "\n", "<br>")

	safeSubject := html.EscapeString(subject)

	return fmt.Sprintf(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd">
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1, minimum-scale=1, maximum-scale=1">
  <title>%s</title>
  <style type="text/css">
    body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 0; background-color: #f4f4f7; }
    .container { max-width: 600px; margin: 0 auto; background-color: #ffffff; }
    .header { background: linear-gradient(135deg, #1e3a5f 0%%, #2b5278 100%%); padding: 40px 30px; text-align: center; }
    .header h1 { color: #fff; margin: 0; font-size: 24px; font-weight: 700; }
    .content { padding: 40px 30px; color: #374151; line-height: 1.6; font-size: 15px; }
    .footer { padding: 30px; text-align: center; color: #6b7280; font-size: 12px; border-top: 1px solid rgba(0,0,0,0.1); }
    .footer a { color: #2b5278; text-decoration: none; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>%s</h1>
    </div>
    <div class="content">
      %s
    </div>
    <div class="footer">
      <p>&copy; Resolve Community Tribunal</p>
    </div>
  </div>
</body>
</html>`, safeSubject, safeSubject, htmlBody)
}

// RenderTargetNotified generates the HTML for the email sent to a verified
// target when a case naming them moves to TargetNotified
func RenderTargetNotified(caseTitle, deadline string) string {
	body := fmt.Sprintf(
		"A dispute case has been filed with the community tribunal and you have been named in it.\n\n"+
			"Case: %s\n\n"+
			"You may submit a written response until %s. If no response is received by then, "+
			"the case proceeds to review without one.\n\n"+
			"Log in to your account to read the case and respond.",
		caseTitle, deadline)
	return RenderGenericEmail("You have been named in a case", body)
}

// RenderCasePublished generates the HTML for the email sent to the filer when
// their case is published for voting
func RenderCasePublished(caseTitle string) string {
	body := fmt.Sprintf(
		"Your case has completed review and is now published for the judges to vote on.\n\n"+
			"Case: %s\n\n"+
			"You will be able to see the verdict on the case page once voting concludes.",
		caseTitle)
	return RenderGenericEmail("Your case is now published for voting", body)
}

// RenderPasswordReset generates the HTML for the password reset email
func RenderPasswordReset(resetLink string) string {
	body := fmt.Sprintf(
		"A password reset was requested for your account.\n\n"+
			"Reset your password using this link: %s\n\n"+
			"The link expires in one hour. If you did not request this reset, please ignore this email.",
		resetLink)
	return RenderGenericEmail("Password Reset", body)
}
