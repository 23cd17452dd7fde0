package helper

// GetDefaultTmpl returns the contact form page used when no template file is
// configured.
func GetDefaultTmpl() string {
	return `<html lang="{{ .Lang }}">
  <head>
    <title>Contact us</title>
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <script src="{{ .ScriptURL }}" defer></script>
  </head>
  <body>
    <h1>Contact us</h1>
    <div id="formMessages" role="status"></div>
    <form action="{{ .FormURL }}" method="post" id="contactForm" accept-charset="UTF-8" novalidate>
      <label for="userName">Full name</label>
      <input type="text" id="userName" name="userName" autocomplete="name">
      <div class="invalid-feedback" id="userNameError"></div>

      <label for="userEmail">Email</label>
      <input type="email" id="userEmail" name="userEmail" autocomplete="email">
      <div class="invalid-feedback" id="userEmailError"></div>

      <label for="userPhone">Phone</label>
      <input type="tel" id="userPhone" name="userPhone" autocomplete="tel">
      <div class="invalid-feedback" id="userPhoneError"></div>

      <label for="userMessage">Message</label>
      <textarea id="userMessage" name="userMessage" rows="4"></textarea>

      <label for="captchaAnswer" id="captchaQuestion">{{ .Question }}</label>
      <input type="text" id="captchaAnswer" name="captchaAnswer" inputmode="numeric" autocomplete="off">
      <div class="invalid-feedback" id="captchaAnswerError"></div>

      <input type="checkbox" id="confirmHuman" name="confirmHuman" value="on">
      <label for="confirmHuman">I am a real person</label>
      <div class="invalid-feedback" id="confirmHumanError"></div>

      <div style="position:absolute;left:-10000px" aria-hidden="true">
        <input type="text" id="{{ .HoneypotName }}" name="{{ .HoneypotName }}" tabindex="-1" autocomplete="off">
      </div>

      <button type="submit" id="submitButton" data-busy-label="{{ .BusyLabel }}">{{ .SubmitLabel }}</button>
    </form>
  </body>
</html>`
}
