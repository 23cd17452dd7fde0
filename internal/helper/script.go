package helper

// GetFormJS returns the script that forwards field and submit events to the
// form endpoints and applies the display events they return.
func GetFormJS() string {
	return `// Contact form glue
(function() {
    function init() {
        var form = document.getElementById("contactForm");
        if (!form) {
            return;
        }
        var submit = document.getElementById("submitButton");
        var idleLabel = submit ? submit.textContent : "";
        var busyLabel = submit ? (submit.getAttribute("data-busy-label") || idleLabel) : "";

        function setBusy(busy) {
            if (submit) { submit.disabled = busy; submit.textContent = busy ? busyLabel : idleLabel; }
        }

        function apply(events) {
            (events || []).forEach(function(e) {
                var field = e.key ? document.getElementById(e.key) : null;
                var errorEl = e.key ? document.getElementById(e.key + "Error") : null;
                switch (e.op) {
                case "showFieldError":
                    if (field) { field.classList.add("is-invalid"); field.setAttribute("aria-invalid", "true"); }
                    if (errorEl) { errorEl.textContent = e.text; }
                    break;
                case "clearFieldError":
                    if (field) { field.classList.remove("is-invalid"); field.removeAttribute("aria-invalid"); }
                    if (errorEl) { errorEl.textContent = ""; }
                    break;
                case "showFormMessage":
                    var box = document.getElementById("formMessages");
                    if (box) { box.className = "form-" + e.kind + "-message show"; box.textContent = e.text; }
                    if (e.kind === "success") { form.reset(); }
                    break;
                case "setSubmitButtonBusy":
                    setBusy(e.busy);
                    break;
                case "renderChallengeQuestion":
                    var q = document.getElementById("captchaQuestion");
                    if (q) { q.textContent = e.text; }
                    var a = document.getElementById("captchaAnswer");
                    if (a) { a.value = ""; }
                    break;
                case "focusField":
                    if (field) { field.focus(); }
                    break;
                }
            });
        }

        function post(url, body) {
            return fetch(url, {
                method: "POST",
                credentials: "same-origin",
                headers: { "Content-Type": "application/x-www-form-urlencoded" },
                body: body
            }).then(function(r) { return r.json(); });
        }

        ["userName", "userEmail", "userPhone", "captchaAnswer", "confirmHuman"].forEach(function(id) {
            var field = document.getElementById(id);
            if (!field) {
                return;
            }
            var evt = field.type === "checkbox" ? "change" : "blur";
            field.addEventListener(evt, function() {
                var body = new URLSearchParams();
                body.set("field", id);
                body.set("value", field.type === "checkbox" ? (field.checked ? "on" : "") : field.value);
                post(form.action + "/validate", body).then(function(res) {
                    if (res.formatted !== undefined && field.value !== res.formatted) {
                        field.value = res.formatted;
                    }
                    apply(res.events);
                });
            });
        });

        form.addEventListener("submit", function(e) {
            e.preventDefault();
            // the response only arrives once the outcome is known
            setBusy(true);
            post(form.action, new URLSearchParams(new FormData(form))).then(function(res) {
                apply(res.events);
            }).catch(function() {
                setBusy(false);
            });
        });
    }

    if (document.readyState === 'loading') {
        document.addEventListener('DOMContentLoaded', init);
    } else {
        init();
    }
})();`
}
