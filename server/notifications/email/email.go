package email

import (
	"fmt"
	"net/smtp"
)

// smtpServer is the address of the SMTP server used to send notification emails.
var smtpServer string

// auth holds the SMTP authentication data, initialized from the sender's credentials.
var auth smtp.Auth

// fromEmail is the "From" address on every notification email.
var fromEmail string

// InitEmailService initializes the notification mailer with the sender's
// credentials and verifies that the SMTP server is reachable.
func InitEmailService(sender, password string) (bool, error) {
	smtpServer = "smtp.gmail.com:587"
	fromEmail = sender

	auth = smtp.PlainAuth(
		"",
		sender,
		password,
		"smtp.gmail.com",
	)

	c, err := smtp.Dial(smtpServer)
	if err != nil {
		return false, fmt.Errorf("cannot connect to the SMTP server: %v", err)
	}

	err = c.Close()
	if err != nil {
		return false, fmt.Errorf("cannot close the SMTP connection: %v", err)
	}

	return true, nil
}

// SendBadgeEmail sends a congratulation email for a newly earned badge.
func SendBadgeEmail(to, badge string) error {
	headers := make(map[string]string)
	headers["From"] = fromEmail
	headers["To"] = to
	headers["Subject"] = "You earned a new badge!"
	headers["MIME-version"] = "1.0"
	headers["Content-Type"] = "text/html; charset=\"UTF-8\""

	message := ""
	for k, v := range headers {
		message += fmt.Sprintf("%s: %s\r\n", k, v)
	}

	body := `
	<html>
		<body>
			<div style="max-width: 600px; margin: 0 auto; padding: 10px;">
				<h1>Congratulations!</h1>
				<p>Your consistency paid off: you just earned the <strong>` + badge + `</strong> badge.</p>
				<p>Keep your streak going. Open your dashboard to see your progress.</p>
			</div>
		</body>
	</html>
	`
	message += "\r\n" + body

	err := smtp.SendMail(
		smtpServer,
		auth,
		fromEmail,
		[]string{to},
		[]byte(message),
	)

	if err != nil {
		return fmt.Errorf("failed to send email: %v", err)
	}

	return nil
}
