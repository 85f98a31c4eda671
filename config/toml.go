package config

const EngineConfigTemplate = `environment = "{{ .Environment }}"
app_id = "{{ .AppID }}"

db_path = "{{ .DbPath }}"
in_memory = {{ .InMemory }}

max_local_accounts = {{ .MaxLocalAccounts }}
onboard_timeout_secs = {{ .OnboardTimeoutSecs }}
payment_timeout_secs = {{ .PaymentTimeoutSecs }}
`
