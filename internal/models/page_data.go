package models

// Branding is the static content shown around the login form.
// It is configuration, not logic: the support contact and logo link vary per deployment.
type Branding struct {
	ProductName         string `yaml:"product_name"`
	SupportEmail        string `yaml:"support_email"`
	LogoURL             string `yaml:"logo_url"`
	WebsiteURL          string `yaml:"website_url"`
	RegistrationEnabled bool   `yaml:"registration_enabled"`
}

// LoginPageData represents the data passed to the login template for rendering.
type LoginPageData struct {
	// Title is the page title displayed in the browser tab and page header
	Title string

	// Email repopulates the email input after a failed attempt.
	// The password is never written back into the page.
	Email string

	// Error is the inline failure message. Empty means no error is shown.
	Error string

	// Message is an informational notice such as "You have been signed out."
	Message string

	// Loading mirrors the form's loading flag and drives the submit button state
	Loading bool

	// Redirect is the post-login target carried through the form
	Redirect string

	// Action is the form's POST target
	Action string

	Branding Branding
}

// ConversationsPageData is rendered on the landing page after login
type ConversationsPageData struct {
	Title    string
	Session  *Session
	Branding Branding
}
